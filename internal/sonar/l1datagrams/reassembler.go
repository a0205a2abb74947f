package l1datagrams

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// ErrStaleFrame reports a frame whose identifier is not newer than the last
// delivered one.
var ErrStaleFrame = errors.New("stale frame")

// Delivery is one reassembled frame and the header it arrived with.
type Delivery struct {
	Frame  *sonar.Frame
	Header FrameHeader
}

// ReassemblerStats counts what the reassembler has seen since creation.
type ReassemblerStats struct {
	Datagrams        uint64 `json:"datagrams"`
	Bytes            uint64 `json:"bytes"`
	FramesDelivered  uint64 `json:"frames_delivered"`
	FramesIncomplete uint64 `json:"frames_incomplete"`
	Duplicates       uint64 `json:"duplicates"`
	Orphans          uint64 `json:"orphans"`
	Malformed        uint64 `json:"malformed"`
	SkippedFrameIDs  uint64 `json:"skipped_frame_ids"`
	StaleFrames      uint64 `json:"stale_frames"`
}

// ReassemblerConfig configures a Reassembler.
type ReassemblerConfig struct {
	Timeout time.Duration  // partial frame lifetime (default: 1s)
	Clock   timeutil.Clock // default: RealClock
	OnFrame func(Delivery) // invoked sequentially from a worker goroutine
}

// Reassembler rebuilds frames from a stream of datagrams. Sequence 0 opens
// a new frame and discards any partial frame still in progress, unless it
// repeats a lone first datagram byte for byte; the header
// in the first bytes gives the length that closes it. Datagrams that arrive
// without an open frame are counted and discarded.
type Reassembler struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	timeout time.Duration

	chunks  map[uint32][]byte
	header  *FrameHeader
	started time.Time
	origin  time.Time

	nextIndex  int
	lastID     uint32
	haveLastID bool
	last       *FrameHeader
	stats      ReassemblerStats

	onFrame   func(Delivery)
	sendMu    sync.RWMutex
	closed    bool
	frameCh   chan Delivery
	frameDone chan struct{}
}

// NewReassembler creates a Reassembler. Call Close to stop the callback
// worker.
func NewReassembler(cfg ReassemblerConfig) *Reassembler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	r := &Reassembler{
		clock:   cfg.Clock,
		timeout: cfg.Timeout,
		chunks:  make(map[uint32][]byte),
		onFrame: cfg.OnFrame,
	}
	if r.onFrame != nil {
		r.frameCh = make(chan Delivery, 8)
		r.frameDone = make(chan struct{})
		go r.frameCallbackWorker()
	}
	return r
}

func (r *Reassembler) frameCallbackWorker() {
	defer close(r.frameDone)
	for d := range r.frameCh {
		r.onFrame(d)
	}
}

// Close stops the callback worker after it has drained queued frames.
func (r *Reassembler) Close() {
	r.sendMu.Lock()
	if r.closed {
		r.sendMu.Unlock()
		return
	}
	r.closed = true
	if r.frameCh != nil {
		close(r.frameCh)
	}
	r.sendMu.Unlock()
	if r.frameDone != nil {
		<-r.frameDone
	}
}

// HandleDatagram feeds one datagram. The returned error describes a frame
// that was dropped or a datagram that was rejected; it never stops the
// reassembler and callers normally only log it.
func (r *Reassembler) HandleDatagram(b []byte) error {
	c, err := ParseDatagram(b)

	r.mu.Lock()
	if err != nil {
		r.stats.Malformed++
		r.mu.Unlock()
		return err
	}
	now := r.clock.Now()
	if r.origin.IsZero() {
		r.origin = now
	}
	r.stats.Datagrams++
	r.stats.Bytes += uint64(len(b))

	var dropErr error
	if r.expiredLocked(now) {
		dropErr = r.dropLocked("timeout")
	}

	if c.Seq == 0 {
		// A repeat counts as a duplicate only before anything else of the
		// frame arrived; later it may be the next frame with an identical
		// first datagram.
		if first, ok := r.chunks[0]; ok && len(r.chunks) == 1 && bytes.Equal(first, c.Data) {
			r.stats.Duplicates++
			r.mu.Unlock()
			return dropErr
		}
		if len(r.chunks) > 0 {
			dropErr = r.dropLocked("superseded by new frame")
		}
		r.started = now
	} else if len(r.chunks) == 0 {
		r.stats.Orphans++
		r.mu.Unlock()
		return errors.Join(dropErr, fmt.Errorf("%w: sequence %d without frame start", sonar.ErrIncompleteFrame, c.Seq))
	}

	if _, dup := r.chunks[c.Seq]; dup {
		r.stats.Duplicates++
		r.mu.Unlock()
		return dropErr
	}
	r.chunks[c.Seq] = bytes.Clone(c.Data)

	d, ok, err := r.completeLocked()
	r.mu.Unlock()

	if ok {
		r.deliver(d)
	}
	return errors.Join(dropErr, err)
}

// Expire drops a partial frame older than the timeout. Listeners call it
// when a read times out so a lost tail does not linger until the next send.
func (r *Reassembler) Expire() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.expiredLocked(r.clock.Now()) {
		return r.dropLocked("timeout")
	}
	return nil
}

// Reset discards the partial frame and the frame-id history without
// touching the counters.
func (r *Reassembler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
	r.haveLastID = false
}

// Stats returns a snapshot of the counters.
func (r *Reassembler) Stats() ReassemblerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// LastHeader returns the header of the most recently delivered frame.
func (r *Reassembler) LastHeader() (FrameHeader, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return FrameHeader{}, false
	}
	return *r.last, true
}

func (r *Reassembler) expiredLocked(now time.Time) bool {
	return len(r.chunks) > 0 && now.Sub(r.started) > r.timeout
}

func (r *Reassembler) resetLocked() {
	clear(r.chunks)
	r.header = nil
}

func (r *Reassembler) dropLocked(reason string) error {
	n := len(r.chunks)
	r.stats.FramesIncomplete++
	r.resetLocked()
	monitoring.Debugf("[Reassembler] dropped partial frame (%s): %d datagrams", reason, n)
	return fmt.Errorf("%w: %s after %d datagrams", sonar.ErrIncompleteFrame, reason, n)
}

// headerLocked parses the header once enough contiguous bytes from
// sequence 0 are present.
func (r *Reassembler) headerLocked() (*FrameHeader, error) {
	if r.header != nil {
		return r.header, nil
	}
	var prefix []byte
	for seq := uint32(0); len(prefix) < ExtendedHeaderSize; seq++ {
		data, ok := r.chunks[seq]
		if !ok {
			break
		}
		prefix = append(prefix, data...)
	}
	h, err := ParseHeader(prefix)
	if err != nil {
		return nil, err
	}
	r.header = &h
	return r.header, nil
}

func (r *Reassembler) completeLocked() (Delivery, bool, error) {
	h, err := r.headerLocked()
	if errors.Is(err, sonar.ErrIncompleteFrame) {
		return Delivery{}, false, nil
	}
	if err != nil {
		r.stats.Malformed++
		r.resetLocked()
		return Delivery{}, false, err
	}

	want := 1
	if stride := len(r.chunks[0]); h.FrameSize() > stride {
		want = (h.FrameSize() + stride - 1) / stride
	}
	if len(r.chunks) < want {
		return Delivery{}, false, nil
	}

	chunks := make([]Chunk, 0, len(r.chunks))
	for seq, data := range r.chunks {
		chunks = append(chunks, Chunk{Seq: seq, Data: data})
	}
	r.resetLocked()

	hdr, payload, err := DecodeChunks(chunks)
	if err != nil {
		r.stats.FramesIncomplete++
		return Delivery{}, false, err
	}

	if hdr.HasFrameID {
		if r.haveLastID {
			delta := int32(hdr.FrameID - r.lastID)
			if delta <= 0 {
				r.stats.StaleFrames++
				return Delivery{}, false, fmt.Errorf("%w: frame id %d after %d", ErrStaleFrame, hdr.FrameID, r.lastID)
			}
			if delta > 1 {
				r.stats.SkippedFrameIDs += uint64(delta - 1)
			}
		}
		r.lastID = hdr.FrameID
		r.haveLastID = true
	}

	ts := r.started.Sub(r.origin).Seconds()
	f, err := sonar.FrameFromBytes(r.nextIndex, ts, int(hdr.Beams), int(hdr.RangeBins), hdr.Depth, payload)
	if err != nil {
		r.stats.Malformed++
		return Delivery{}, false, err
	}
	r.nextIndex++
	r.stats.FramesDelivered++
	r.last = &hdr
	return Delivery{Frame: f, Header: hdr}, true, nil
}

func (r *Reassembler) deliver(d Delivery) {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.closed || r.frameCh == nil {
		return
	}
	r.frameCh <- d
}
