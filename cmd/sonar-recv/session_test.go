package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/sonar/monitor"
	"github.com/banshee-data/fanbeam/internal/sonar/recorder"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
	"github.com/banshee-data/fanbeam/internal/sonardb"
	"github.com/banshee-data/fanbeam/internal/testutil"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func newSession(t *testing.T) (*session, *timeutil.MockClock) {
	t.Helper()
	db, err := sonardb.Open(filepath.Join(t.TempDir(), "sonar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	clock := timeutil.NewMockClock(time.Date(2025, 5, 3, 14, 2, 11, 0, time.UTC))
	return &session{
		id:      "test-session",
		source:  "udp://:5700",
		clock:   clock,
		db:      db,
		history: monitor.NewStatsHistory(10),
	}, clock
}

func TestSessionRecordsAndCatalogues(t *testing.T) {
	s, clock := newSession(t)
	s.record = true
	s.recordPath = recorder.DefaultPath(t.TempDir(), clock.Now())

	for _, f := range testutil.Frames(t, 3, 4, 8) {
		s.handle(l1datagrams.Delivery{
			Frame:  f,
			Header: l1datagrams.FrameHeader{Beams: 4, RangeBins: 8, SwathDeg: 90, MaxRange: 12, Depth: f.Depth()},
		})
		clock.Advance(100 * time.Millisecond)
	}
	require.NotNil(t, s.rec)
	require.NoError(t, s.close())

	recs, err := s.db.Recordings(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, s.recordPath, recs[0].Path)
	assert.Equal(t, "udp://:5700", recs[0].Source)
	assert.Equal(t, uint64(3), recs[0].TotalFrames)
	assert.Equal(t, 90.0, recs[0].SwathDeg)
	assert.Equal(t, 12.0, recs[0].MaxRange)
	assert.Equal(t, 200*time.Millisecond, recs[0].Duration())
}

func TestSessionWithoutRecording(t *testing.T) {
	s, _ := newSession(t)
	for _, f := range testutil.Frames(t, 2, 4, 8) {
		s.handle(l1datagrams.Delivery{Frame: f})
	}
	assert.Nil(t, s.rec)
	assert.NoError(t, s.close())
}

func TestSessionRendersHeaderGeometry(t *testing.T) {
	s, clock := newSession(t)
	s.pipeline = render.NewPipeline(render.Config{Clock: clock})
	t.Cleanup(s.pipeline.Close)

	f := testutil.Frames(t, 1, 4, 8)[0]
	s.handle(l1datagrams.Delivery{
		Frame:  f,
		Header: l1datagrams.FrameHeader{Beams: 4, RangeBins: 8, SwathDeg: 90, MaxRange: 12, Depth: f.Depth()},
	})

	last := s.pipeline.Last()
	require.NotNil(t, last)
	assert.Equal(t, 90.0, last.Overlay.SwathDeg)
	assert.Equal(t, 12.0, last.Overlay.MaxRange)
	assert.NoError(t, s.close())
}

func TestSessionSamples(t *testing.T) {
	s, clock := newSession(t)
	s.sample(l1datagrams.ReassemblerStats{Datagrams: 10, Bytes: 1000, FramesDelivered: 2})
	clock.Advance(time.Second)
	s.sample(l1datagrams.ReassemblerStats{Datagrams: 30, Bytes: 3000, FramesDelivered: 6, FramesIncomplete: 1})

	rates := s.history.Rates()
	require.Len(t, rates, 1)
	assert.InDelta(t, 20.0, rates[0].DatagramsPerSec, 1e-9)
	assert.InDelta(t, 4.0, rates[0].FramesPerSec, 1e-9)
	assert.InDelta(t, 1.0, rates[0].IncompletePerSec, 1e-9)

	stored, err := s.db.TransportSamples("test-session", 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, sonardb.RoleRecv, stored[1].Role)
	assert.Equal(t, uint64(6), stored[1].Frames)
}
