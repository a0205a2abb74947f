package monitor

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/fanbeam/internal/sonardb"
)

// DefaultHistory is the number of samples a StatsHistory keeps.
const DefaultHistory = 720

// Rate is the per-second change between two consecutive samples.
type Rate struct {
	Time              time.Time `json:"time"`
	DatagramsPerSec   float64   `json:"datagrams_per_sec"`
	MBPerSec          float64   `json:"mb_per_sec"`
	FramesPerSec      float64   `json:"frames_per_sec"`
	IncompletePerSec  float64   `json:"incomplete_per_sec"`
	WriteErrorsPerSec float64   `json:"write_errors_per_sec"`
}

// StatsHistory keeps the most recent transport samples of one session
// for the monitor pages. It is safe for concurrent use.
type StatsHistory struct {
	mu      sync.Mutex
	samples []sonardb.TransportSample
	limit   int
}

// NewStatsHistory keeps up to limit samples (DefaultHistory when <= 0).
func NewStatsHistory(limit int) *StatsHistory {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &StatsHistory{limit: limit}
}

// Add appends s, evicting the oldest sample when full.
func (h *StatsHistory) Add(s sonardb.TransportSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) == h.limit {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:len(h.samples)-1]
	}
	h.samples = append(h.samples, s)
}

// Samples returns a copy of the retained samples, oldest first.
func (h *StatsHistory) Samples() []sonardb.TransportSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sonardb.TransportSample(nil), h.samples...)
}

// Latest returns the newest sample, or nil.
func (h *StatsHistory) Latest() *sonardb.TransportSample {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) == 0 {
		return nil
	}
	s := h.samples[len(h.samples)-1]
	return &s
}

// Rates converts consecutive cumulative samples into per-second rates.
// Pairs with no elapsed time or a counter reset are skipped.
func (h *StatsHistory) Rates() []Rate {
	samples := h.Samples()
	var out []Rate
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		dt := cur.Time.Sub(prev.Time).Seconds()
		if dt <= 0 || cur.Datagrams < prev.Datagrams {
			continue
		}
		out = append(out, Rate{
			Time:              cur.Time,
			DatagramsPerSec:   float64(cur.Datagrams-prev.Datagrams) / dt,
			MBPerSec:          float64(cur.Bytes-prev.Bytes) / dt / (1024 * 1024),
			FramesPerSec:      float64(cur.Frames-prev.Frames) / dt,
			IncompletePerSec:  float64(cur.FramesIncomplete-prev.FramesIncomplete) / dt,
			WriteErrorsPerSec: float64(cur.WriteErrors-prev.WriteErrors) / dt,
		})
	}
	return out
}

// LogRate logs the latest rate the way the listener logs its counters.
func (h *StatsHistory) LogRate() {
	rates := h.Rates()
	if len(rates) == 0 {
		return
	}
	r := rates[len(rates)-1]
	msg := fmt.Sprintf("[Monitor] transport (/sec): %.2f MB, %.1f datagrams, %.1f frames", r.MBPerSec, r.DatagramsPerSec, r.FramesPerSec)
	if r.IncompletePerSec > 0 {
		msg += fmt.Sprintf(", %.1f incomplete", r.IncompletePerSec)
	}
	log.Print(msg)
}
