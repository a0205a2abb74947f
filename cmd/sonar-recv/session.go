package main

import (
	"log"
	"time"

	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/sonar/monitor"
	"github.com/banshee-data/fanbeam/internal/sonar/recorder"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
	"github.com/banshee-data/fanbeam/internal/sonardb"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// session holds what one receiver run produces: an optional recording, the
// live raster and the transport samples. handle runs on the reassembler's
// callback worker, sample on the listener's stats ticker.
type session struct {
	id       string
	source   string
	clock    timeutil.Clock
	db       *sonardb.DB
	history  *monitor.StatsHistory
	pipeline *render.Pipeline

	record     bool
	recordPath string // empty records under the temp dir
	rec        *recorder.Recorder
	recordErr  bool

	swath, maxRange uint16
}

func (s *session) handle(d l1datagrams.Delivery) {
	if s.pipeline != nil {
		if d.Header.SwathDeg != s.swath || d.Header.MaxRange != s.maxRange {
			s.swath, s.maxRange = d.Header.SwathDeg, d.Header.MaxRange
			next := s.pipeline.Settings()
			next.SwathDeg, next.MaxRange = float64(s.swath), float64(s.maxRange)
			if err := next.Validate(); err == nil {
				s.pipeline.ApplyNow(next)
			}
		}
		if _, err := s.pipeline.HandleFrame(d.Frame); err != nil {
			log.Printf("Render frame %d: %v", d.Frame.Index(), err)
		}
	}

	if !s.record || s.recordErr {
		return
	}
	if s.rec == nil {
		rec, err := recorder.NewRecorder(s.recordPath, recorder.Options{
			Source:   s.source,
			SwathDeg: float64(d.Header.SwathDeg),
			MaxRange: float64(d.Header.MaxRange),
			Clock:    s.clock,
		})
		if err != nil {
			log.Printf("Failed to start recording: %v", err)
			s.recordErr = true
			return
		}
		log.Printf("Recording to %s (session %s)", rec.Path(), rec.SessionID())
		s.rec = rec
	}
	if err := s.rec.Record(d.Frame); err != nil {
		log.Printf("Failed to record frame %d: %v", d.Frame.Index(), err)
	}
}

func (s *session) sample(st l1datagrams.ReassemblerStats) {
	ts := sonardb.ReceiverSample(s.id, s.clock.Now(), st)
	if s.history != nil {
		s.history.Add(ts)
		s.history.LogRate()
	}
	if s.db != nil {
		if err := s.db.RecordTransportSample(ts); err != nil {
			log.Printf("Failed to record transport stats: %v", err)
		}
	}
}

// close finalises the recording and catalogues it. Call it after the
// reassembler has drained.
func (s *session) close() error {
	if s.rec == nil {
		return nil
	}
	if err := s.rec.Close(); err != nil {
		return err
	}
	log.Printf("Recorded %d frames to %s", s.rec.FrameCount(), s.rec.Path())
	if s.db == nil {
		return nil
	}
	r, err := s.db.CatalogRecording(s.rec.Path())
	if err != nil {
		return err
	}
	log.Printf("Catalogued recording %s (%s)", r.SessionID, r.Duration().Round(time.Millisecond))
	return nil
}
