package render

import (
	"bytes"
	"context"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l2fan"
	"github.com/banshee-data/fanbeam/internal/sonar/playback"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

func init() { monitoring.SetLogger(nil) }

func rampFrame(t *testing.T, index int, beams, bins int) *sonar.Frame {
	t.Helper()
	s := make([]uint16, beams*bins)
	for i := range s {
		s[i] = uint16(i % 100)
	}
	f, err := sonar.NewFrame(index, float64(index)/10, beams, bins, sonar.Depth8, s)
	require.NoError(t, err)
	return f
}

func smallSettings() Settings {
	s := DefaultSettings()
	s.Width, s.Height = 64, 48
	return s
}

func newTestPipeline(t *testing.T) (*Pipeline, *timeutil.MockClock, chan *Rendered) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	out := make(chan *Rendered, 16)
	p := NewPipeline(Config{
		Settings: smallSettings(),
		Clock:    clock,
		OnRender: func(r *Rendered) { out <- r },
	})
	t.Cleanup(p.Close)
	return p, clock, out
}

func TestPipelineReusesMapping(t *testing.T) {
	p, _, out := newTestPipeline(t)

	for i := 0; i < 3; i++ {
		r, err := p.HandleFrame(rampFrame(t, i, 16, 32))
		require.NoError(t, err)
		assert.Equal(t, i, r.Overlay.FrameIndex)
		assert.Equal(t, 64, r.Image.Bounds().Dx())
	}
	assert.Len(t, out, 3)
	assert.Equal(t, uint64(1), p.MappingBuilds())

	// A frame with a different grid is a different key.
	_, err := p.HandleFrame(rampFrame(t, 3, 8, 32))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.MappingBuilds())
}

func TestPipelineDebouncedRecomputeUsesLatestValues(t *testing.T) {
	p, clock, out := newTestPipeline(t)
	_, err := p.HandleFrame(rampFrame(t, 7, 16, 32))
	require.NoError(t, err)
	<-out

	p.SetSwath(90)
	p.SetRange(10)
	p.SetSwath(100)
	p.SetIntensityWindow(10, 20)
	p.SetSize(80, 60)
	p.SetColors(l2fan.Black, l2fan.White)

	select {
	case <-out:
		t.Fatal("rendered before the debounce window closed")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(DefaultDebounce)
	var r *Rendered
	select {
	case r = <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("no recompute after debounce window")
	}

	assert.Equal(t, 7, r.Overlay.FrameIndex)
	assert.Equal(t, 100.0, r.Overlay.SwathDeg)
	assert.Equal(t, 10.0, r.Overlay.MaxRange)
	assert.Equal(t, 10.0, r.Overlay.MinIntensity)
	assert.Equal(t, 20.0, r.Overlay.MaxIntensity)
	assert.Equal(t, l2fan.White, r.Overlay.MaxColor)
	assert.Equal(t, 80, r.Image.Bounds().Dx())
	assert.Equal(t, 60, r.Image.Bounds().Dy())
	assert.Equal(t, uint64(2), p.MappingBuilds(), "one rebuild for the whole burst")

	require.Eventually(t, func() bool { return p.Recomputes() == 1 }, time.Second, time.Millisecond)
	select {
	case <-out:
		t.Fatal("burst produced more than one recompute")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Same(t, r, p.Last())
}

func TestPipelineFramesDuringBurstKeepAppliedSettings(t *testing.T) {
	p, clock, out := newTestPipeline(t)

	for i := 0; i < 10; i++ {
		p.SetSize(64+i, 48)
		p.SetSwath(float64(90 + i))
		r, err := p.HandleFrame(rampFrame(t, i, 16, 32))
		require.NoError(t, err)
		assert.Equal(t, 64, r.Image.Bounds().Dx())
		assert.Equal(t, 120.0, r.Overlay.SwathDeg)
	}
	assert.Equal(t, uint64(1), p.MappingBuilds(), "no rebuild inside the debounce window")
	assert.Zero(t, p.Recomputes())
	assert.Equal(t, 73, p.Settings().Width)
	assert.Equal(t, 64, p.Applied().Width)

	clock.Advance(DefaultDebounce)
	require.Eventually(t, func() bool { return p.Recomputes() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(2), p.MappingBuilds())
	assert.Equal(t, p.Settings(), p.Applied())

	last := p.Last()
	assert.Equal(t, 9, last.Overlay.FrameIndex)
	assert.Equal(t, 73, last.Image.Bounds().Dx())
	assert.Equal(t, 99.0, last.Overlay.SwathDeg)
	assert.Len(t, out, 11)

	r, err := p.HandleFrame(rampFrame(t, 10, 16, 32))
	require.NoError(t, err)
	assert.Equal(t, 73, r.Image.Bounds().Dx())
	assert.Equal(t, uint64(2), p.MappingBuilds())
}

func TestPipelineApplyNow(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	s := smallSettings()
	s.SwathDeg, s.MaxRange = 90, 12
	p.ApplyNow(s)

	r, err := p.HandleFrame(rampFrame(t, 0, 16, 32))
	require.NoError(t, err)
	assert.Equal(t, 90.0, r.Overlay.SwathDeg)
	assert.Equal(t, 12.0, r.Overlay.MaxRange)
	assert.Zero(t, p.Recomputes())
}

func TestPipelineRecomputeWithoutFrame(t *testing.T) {
	p, clock, out := newTestPipeline(t)
	p.SetRange(0)
	clock.Advance(DefaultDebounce)
	require.Eventually(t, func() bool { return p.Recomputes() == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, out)
	assert.Nil(t, p.Last())
}

func TestOverlayGeometry(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	base := time.Date(2025, 5, 9, 14, 30, 0, 0, time.UTC)
	p.SetBaseTimestamp(base)

	r, err := p.Render(rampFrame(t, 15, 16, 32))
	require.NoError(t, err)
	o := r.Overlay

	assert.Equal(t, base.Add(1500*time.Millisecond), o.WallClock)
	require.Len(t, o.Rings, 3)
	assert.Equal(t, 30.0, o.Rings[2].RangeM)
	assert.InDelta(t, o.RadiusPx, o.Rings[2].RadiusPx, 1e-9)
	assert.InDelta(t, o.RadiusPx/3, o.Rings[0].RadiusPx, 1e-9)

	require.Len(t, o.Spokes, 5)
	assert.Equal(t, 0.0, o.Spokes[2].AngleDeg)
	assert.InDelta(t, o.ApexX, o.Spokes[2].X, 1e-9)
	assert.InDelta(t, o.ApexY-o.RadiusPx, o.Spokes[2].Y, 1e-9)
	assert.Equal(t, l2fan.Black, o.Foreground)
	assert.Nil(t, p.Last(), "Render does not publish")
}

func TestAutoWindow(t *testing.T) {
	f := rampFrame(t, 0, 10, 10)
	lo, hi := AutoWindow(f, 0.1, 0.9)
	assert.InDelta(t, 9, lo, 1)
	assert.InDelta(t, 89, hi, 1)

	p, clock, _ := newTestPipeline(t)
	s := smallSettings()
	s.AutoWindow = true
	p.Apply(s)
	assert.False(t, p.Applied().AutoWindow, "applied when the debounce window closes")
	clock.Advance(DefaultDebounce)
	require.Eventually(t, func() bool { return p.Recomputes() == 1 }, time.Second, time.Millisecond)
	r, err := p.Render(f)
	require.NoError(t, err)
	assert.Equal(t, lo, r.Overlay.MinIntensity)
	assert.Equal(t, hi, r.Overlay.MaxIntensity)
}

func TestSummarize(t *testing.T) {
	f, err := sonar.NewFrame(0, 0, 2, 2, sonar.Depth8, []uint16{4, 1, 3, 2})
	require.NoError(t, err)
	s := Summarize(f)
	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Greater(t, s.StdDev, 0.0)

	one, err := sonar.NewFrame(0, 0, 1, 1, sonar.Depth8, []uint16{9})
	require.NoError(t, err)
	assert.Equal(t, 0.0, Summarize(one).StdDev)
}

func TestRunConsumesEvents(t *testing.T) {
	p, _, out := newTestPipeline(t)
	events := make(chan playback.Event, 4)
	events <- playback.Event{Type: playback.EventPositionChanged, Index: 2}
	events <- playback.Event{Type: playback.EventFrameReady, Index: 2, Frame: rampFrame(t, 2, 16, 16)}
	events <- playback.Event{Type: playback.EventError, Kind: sonar.KindDecodeError, Err: sonar.ErrDecode}
	events <- playback.Event{Type: playback.EventFinished}
	close(events)

	require.NoError(t, p.Run(context.Background(), events))
	require.Len(t, out, 1)
	assert.Equal(t, 2, p.Last().Overlay.FrameIndex)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Run(ctx, make(chan playback.Event)), context.Canceled)
}

func TestEncodePNG(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	r, err := p.Render(rampFrame(t, 0, 16, 16))
	require.NoError(t, err)

	b, err := EncodePNG(r.Image)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, r.Image.Bounds(), img.Bounds())
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())
	s := DefaultSettings()
	s.MaxRange = 0
	assert.ErrorIs(t, s.Validate(), sonar.ErrConfiguration)
	s = DefaultSettings()
	s.AutoWindow, s.AutoLow, s.AutoHigh = true, 0.9, 0.1
	assert.ErrorIs(t, s.Validate(), sonar.ErrConfiguration)
}
