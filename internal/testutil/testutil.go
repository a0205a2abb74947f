// Package testutil provides shared test fixtures: sonar frames, an
// in-memory FrameSource and small HTTP helpers.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// GradientFrame builds a frame whose sample at (r, b) is
// (r*beams + b + index) modulo the depth range, so every frame of a
// sequence differs.
func GradientFrame(t testing.TB, index, beams, bins int, depth sonar.SampleDepth) *sonar.Frame {
	t.Helper()
	mod := int(depth.MaxValue()) + 1
	samples := make([]uint16, beams*bins)
	for i := range samples {
		samples[i] = uint16((i + index) % mod)
	}
	f, err := sonar.NewFrame(index, float64(index)/sonar.DefaultFPS, beams, bins, depth, samples)
	if err != nil {
		t.Fatalf("GradientFrame: %v", err)
	}
	return f
}

// Frames builds n gradient frames.
func Frames(t testing.TB, n, beams, bins int) []*sonar.Frame {
	t.Helper()
	out := make([]*sonar.Frame, n)
	for i := range out {
		out[i] = GradientFrame(t, i, beams, bins, sonar.Depth8)
	}
	return out
}

// MemSource is an in-memory sonar.FrameSource, safe for concurrent use.
type MemSource struct {
	mu      sync.Mutex
	frames  []*sonar.Frame
	fps     float64
	cursor  int
	closed  bool
	readErr map[int]error
}

// NewMemSource wraps frames.
func NewMemSource(fps float64, frames ...*sonar.Frame) *MemSource {
	return &MemSource{frames: frames, fps: fps, readErr: map[int]error{}}
}

// FailAt makes reading frame i return err.
func (s *MemSource) FailAt(i int, err error) {
	s.mu.Lock()
	s.readErr[i] = err
	s.mu.Unlock()
}

func (s *MemSource) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *MemSource) FPS() float64 { return s.fps }

func (s *MemSource) Seek(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i > len(s.frames) {
		return fmt.Errorf("%w: seek %d", sonar.ErrEndOfSource, i)
	}
	s.cursor = i
	return nil
}

func (s *MemSource) ReadNext() (*sonar.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.readErr[s.cursor]; ok {
		return nil, err
	}
	if s.cursor >= len(s.frames) {
		return nil, sonar.ErrEndOfSource
	}
	f := s.frames[s.cursor]
	s.cursor++
	return f, nil
}

func (s *MemSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *MemSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
