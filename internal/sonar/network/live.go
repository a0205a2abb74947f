package network

import (
	"fmt"
	"sync"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
)

// DefaultLiveCapacity is the number of frames a LiveSource retains.
const DefaultLiveCapacity = 600

// LiveSource keeps the most recent received frames as a seekable source.
// Frame indices are absolute: FrameCount grows with every Push, and
// indices older than the retained window resolve to the oldest frame
// still held.
type LiveSource struct {
	mu       sync.Mutex
	ring     []*sonar.Frame
	total    int
	cursor   int
	fps      float64
	closed   bool
	onClosed func()
}

// NewLiveSource creates an empty LiveSource holding up to capacity frames.
func NewLiveSource(capacity int, fps float64) *LiveSource {
	if capacity <= 0 {
		capacity = DefaultLiveCapacity
	}
	return &LiveSource{ring: make([]*sonar.Frame, capacity), fps: fps}
}

// Push appends f, renumbering it with the next absolute index.
func (s *LiveSource) Push(f *sonar.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ring[s.total%len(s.ring)] = f.Reindexed(s.total, f.Timestamp())
	s.total++
}

// PushDelivery adapts Push to a reassembler callback.
func (s *LiveSource) PushDelivery(d l1datagrams.Delivery) { s.Push(d.Frame) }

// OnClose registers fn to run once when the source is closed, typically to
// stop the receiver feeding it.
func (s *LiveSource) OnClose(fn func()) {
	s.mu.Lock()
	s.onClosed = fn
	s.mu.Unlock()
}

func (s *LiveSource) Live() bool { return true }

func (s *LiveSource) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *LiveSource) FPS() float64 { return s.fps }

// Oldest is the absolute index of the oldest retained frame.
func (s *LiveSource) Oldest() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oldestLocked()
}

func (s *LiveSource) oldestLocked() int {
	return max(0, s.total-len(s.ring))
}

func (s *LiveSource) Seek(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i > s.total {
		return fmt.Errorf("%w: seek %d of %d live frames", sonar.ErrEndOfSource, i, s.total)
	}
	s.cursor = max(i, s.oldestLocked())
	return nil
}

func (s *LiveSource) ReadNext() (*sonar.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: live source closed", sonar.ErrEndOfSource)
	}
	s.cursor = max(s.cursor, s.oldestLocked())
	if s.cursor >= s.total {
		return nil, sonar.ErrEndOfSource
	}
	f := s.ring[s.cursor%len(s.ring)]
	s.cursor++
	return f, nil
}

func (s *LiveSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clear(s.ring)
	fn := s.onClosed
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}
