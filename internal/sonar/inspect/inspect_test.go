package inspect

import (
	"bytes"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/synthetic"
	"github.com/banshee-data/fanbeam/internal/testutil"
)

func pillarSource(t *testing.T, frames int) *synthetic.Source {
	t.Helper()
	src, err := synthetic.New(synthetic.Config{
		Beams:     64,
		RangeBins: 101,
		SwathDeg:  120,
		MaxRange:  10,
		FPS:       20,
		Frames:    frames,
		Depth:     sonar.Depth8,
		Targets:   []synthetic.Target{synthetic.Pillar},
	})
	require.NoError(t, err)
	return src
}

func TestAnalyzePillar(t *testing.T) {
	rep, err := Analyze(pillarSource(t, 10), Options{})
	require.NoError(t, err)

	assert.Equal(t, 10, rep.Frames)
	assert.Equal(t, 10, rep.Analysed)
	assert.Equal(t, 64, rep.Beams)
	assert.Equal(t, 101, rep.RangeBins)
	assert.Equal(t, "8bit", rep.Depth)
	assert.InDelta(t, 0.45, rep.Duration, 1e-9)
	assert.InDelta(t, 0.05, rep.MeanFrameInterval, 1e-9)
	assert.InDelta(t, 0, rep.StdDevFrameInterval, 1e-9)

	// The pillar sits at 3 m: bin 30 of a 10 m, 101-bin fan.
	assert.InDelta(t, 30, rep.PeakRangeBin(), 2)
	assert.Len(t, rep.PerFrame, 10)
	assert.Greater(t, rep.PerFrame[0].Max, 0.0)

	require.Len(t, rep.HistogramEdges, DefaultHistogramBins+1)
	assert.Equal(t, 0.0, rep.HistogramEdges[0])
	assert.Equal(t, 256.0, rep.HistogramEdges[DefaultHistogramBins])
	assert.Equal(t, float64(10*64*101), floats.Sum(rep.HistogramCounts))
	assert.Greater(t, rep.HistogramCounts[DefaultHistogramBins-1], 0.0, "pillar cells saturate")
	assert.Greater(t, rep.MeanIntensity, 0.0)
	assert.Greater(t, rep.StdDevIntensity, 0.0)
}

func TestAnalyzeStrideAndLimit(t *testing.T) {
	rep, err := Analyze(pillarSource(t, 10), Options{Stride: 3, MaxFrames: 3, HistogramBins: 8})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Analysed)
	indices := []int{rep.PerFrame[0].Index, rep.PerFrame[1].Index, rep.PerFrame[2].Index}
	assert.Equal(t, []int{0, 3, 6}, indices)
	assert.InDelta(t, 0.15, rep.MeanFrameInterval, 1e-9)
	assert.Len(t, rep.HistogramCounts, 8)
}

func TestAnalyzeGradient(t *testing.T) {
	f := testutil.GradientFrame(t, 0, 4, 2, sonar.Depth8)
	rep, err := Analyze(testutil.NewMemSource(30, f), Options{HistogramBins: 256})
	require.NoError(t, err)
	// Samples 0..7.
	assert.InDelta(t, 3.5, rep.MeanIntensity, 1e-9)
	assert.InDelta(t, math.Sqrt(6), rep.StdDevIntensity, 1e-9)
	assert.Equal(t, []float64{1.5, 5.5}, rep.RangeProfile)
	assert.Equal(t, 1.0, rep.HistogramCounts[7])
	assert.Zero(t, rep.Duration)
}

func TestAnalyzeEmptyAndErrors(t *testing.T) {
	rep, err := Analyze(testutil.NewMemSource(30), Options{})
	require.NoError(t, err)
	assert.Zero(t, rep.Analysed)
	assert.Equal(t, -1, rep.PeakRangeBin())
	_, err = WritePlots(rep, t.TempDir(), 0)
	assert.Error(t, err)

	mixed := testutil.NewMemSource(30,
		testutil.GradientFrame(t, 0, 4, 4, sonar.Depth8),
		testutil.GradientFrame(t, 1, 4, 8, sonar.Depth8))
	_, err = Analyze(mixed, Options{})
	assert.ErrorIs(t, err, sonar.ErrDecode)

	failing := testutil.NewMemSource(30, testutil.Frames(t, 3, 4, 4)...)
	failing.FailAt(1, sonar.ErrDecode)
	_, err = Analyze(failing, Options{})
	assert.ErrorIs(t, err, sonar.ErrDecode)
}

func TestWritePlots(t *testing.T) {
	rep, err := Analyze(pillarSource(t, 4), Options{})
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := WritePlots(rep, dir, 10)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), p)
	}
}
