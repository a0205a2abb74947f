// Package playback drives a FrameSource from a single producer goroutine
// according to a commanded transport mode, and reports frames and
// positions to one consumer over a channel.
package playback

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// ErrClosed is returned by SetSource after Close.
var ErrClosed = errors.New("playback controller closed")

// Config configures a Controller.
type Config struct {
	Opener       sonar.Opener   // resolves SetSource paths
	Clock        timeutil.Clock // default: RealClock
	PollInterval time.Duration  // Paused idle wait (default: 100ms)
	EventBuffer  int            // event channel capacity (default: 32)
	StartPaused  bool           // otherwise a new source starts Playing after frame 0
}

// Status is a snapshot of the playback session.
type Status struct {
	SessionID     string  `json:"session_id"`
	Source        string  `json:"source"`
	Mode          Mode    `json:"mode"`
	Index         int     `json:"index"`
	Total         int     `json:"total"`
	FPS           float64 `json:"fps"`
	Running       bool    `json:"running"`
	DroppedFrames uint64  `json:"dropped_frames"`
}

// liveSource is implemented by sources whose frame count grows while they
// are open. An empty live source idles instead of failing.
type liveSource interface {
	Live() bool
}

// windowedSource is implemented by sources that evict old frames. Oldest is
// the smallest index still readable.
type windowedSource interface {
	Oldest() int
}

// Controller owns the producer loop. Commands may be called from any
// goroutine; only the producer touches the source cursor. Seek and Stop
// force Paused and leave a pending seek that the producer applies at the
// top of its next iteration, so a command never races an in-flight read.
type Controller struct {
	clock  timeutil.Clock
	opener sonar.Opener
	poll   time.Duration
	paused bool

	events  chan Event
	wake    chan struct{}
	dropped atomic.Uint64

	// lifeMu serialises loop start and shutdown.
	lifeMu sync.Mutex

	mu          sync.Mutex
	mode        Mode
	gen         uint64
	pendingSeek int
	hasPending  bool
	index       int
	total       int
	fps         float64
	source      string
	sessionID   string
	closed      bool

	stop chan struct{}
	done chan struct{}
}

// New creates an idle Controller. Call SetSource to start producing.
func New(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 32
	}
	return &Controller{
		clock:  cfg.Clock,
		opener: cfg.Opener,
		poll:   cfg.PollInterval,
		paused: cfg.StartPaused,
		events: make(chan Event, cfg.EventBuffer),
		wake:   make(chan struct{}, 1),
	}
}

// Events is the single consumer channel. It is closed by Close.
func (c *Controller) Events() <-chan Event { return c.events }

// SetSource opens path with the configured Opener and starts playing it,
// halting any previous producer loop first.
func (c *Controller) SetSource(path string) error {
	if c.opener == nil {
		return fmt.Errorf("%w: no source opener configured", sonar.ErrConfiguration)
	}
	src, err := c.opener(path)
	if err != nil {
		return fmt.Errorf("open source %s: %w", path, err)
	}
	if err := c.SetFrameSource(path, src); err != nil {
		src.Close()
		return err
	}
	return nil
}

// SetFrameSource starts a producer loop over an already opened source. The
// first frame emitted is frame 0. name labels the source in Status.
func (c *Controller) SetFrameSource(name string, src sonar.FrameSource) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	c.halt()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.source = name
	c.sessionID = uuid.NewString()
	c.total = src.FrameCount()
	c.fps = sonar.EffectiveFPS(src.FPS())
	c.index = 0
	c.pendingSeek, c.hasPending = 0, true
	c.mode = Playing
	if c.paused {
		c.mode = Paused
	}
	c.gen++
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(src, c.stop, c.done)

	log.Printf("[Playback] session %s: %s (%d frames @ %.2f fps)", c.sessionID, name, c.total, c.fps)
	return nil
}

// Play resumes forward playback paced at the source frame rate.
func (c *Controller) Play() { c.setMode(Playing) }

// Pause keeps the producer alive but stops reading.
func (c *Controller) Pause() { c.setMode(Paused) }

// FastForward steps forward FastStep frames per tick without pacing.
func (c *Controller) FastForward() { c.setMode(FastForward) }

// Rewind steps back FastStep frames per tick without pacing.
func (c *Controller) Rewind() { c.setMode(Rewind) }

// Seek pauses and shows frame index, clamped to the source.
func (c *Controller) Seek(index int) {
	c.mu.Lock()
	c.mode = Paused
	c.pendingSeek, c.hasPending = index, true
	c.gen++
	c.mu.Unlock()
	c.signal()
}

// Stop pauses and returns to frame 0. Close halts the loop itself.
func (c *Controller) Stop() { c.Seek(0) }

func (c *Controller) setMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.gen++
	c.mu.Unlock()
	c.signal()
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	running := false
	if c.done != nil {
		select {
		case <-c.done:
		default:
			running = true
		}
	}
	return Status{
		SessionID:     c.sessionID,
		Source:        c.source,
		Mode:          c.mode,
		Index:         c.index,
		Total:         c.total,
		FPS:           c.fps,
		Running:       running,
		DroppedFrames: c.dropped.Load(),
	}
}

// Close halts the producer loop, waits for it to release the source and
// closes the event channel. It is safe to call more than once.
func (c *Controller) Close() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	c.halt()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}

// halt stops the current producer loop, if any, and waits for it to exit.
func (c *Controller) halt() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	c.mu.Lock()
	c.done = done
	c.mu.Unlock()
}

func (c *Controller) run(src sonar.FrameSource, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("[Playback] close source: %v", err)
		}
	}()

	reported := Mode(-1)
	for {
		select {
		case <-stop:
			c.tryEmit(Event{Type: EventFinished})
			return
		default:
		}

		c.mu.Lock()
		mode, gen := c.mode, c.gen
		seek, hasSeek := c.pendingSeek, c.hasPending
		c.hasPending = false
		cur := c.index
		c.mu.Unlock()

		if mode != reported {
			if !c.emit(stop, Event{Type: EventModeChanged, Mode: mode}) {
				continue
			}
			reported = mode
		}

		total := src.FrameCount()
		c.mu.Lock()
		c.total = total
		c.mu.Unlock()

		if hasSeek {
			if total == 0 && isLive(src) {
				c.mu.Lock()
				if !c.hasPending {
					c.pendingSeek, c.hasPending = seek, true
				}
				c.mu.Unlock()
				c.idle(stop)
				continue
			}
			if err := c.show(src, stop, max(sonar.ClampIndex(seek, total), oldest(src))); err != nil {
				c.fail(stop, err)
				return
			}
			continue
		}

		step := mode.Step()
		live := isLive(src)
		if step == 0 || (total == 0 && live) || (live && step > 0 && cur >= total-1) {
			c.idle(stop)
			continue
		}

		lo := oldest(src)
		next := max(sonar.ClampIndex(cur+step, total), lo)
		if err := c.show(src, stop, next); err != nil {
			c.fail(stop, err)
			return
		}
		if mode == Playing {
			c.clock.Sleep(FrameInterval(src.FPS()))
		}

		c.mu.Lock()
		// Live sources keep following new frames instead of pausing at the head.
		if c.gen == gen && mode.atEnd(next-lo, total-lo) && !(live && step > 0) {
			c.mode = Paused
			c.gen++
		}
		c.mu.Unlock()
	}
}

// FrameInterval is the Playing pacing delay, 1000/fps milliseconds.
func FrameInterval(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / sonar.EffectiveFPS(fps))
}

func isLive(src sonar.FrameSource) bool {
	l, ok := src.(liveSource)
	return ok && l.Live()
}

// oldest is the first index src can still serve.
func oldest(src sonar.FrameSource) int {
	if w, ok := src.(windowedSource); ok {
		return w.Oldest()
	}
	return 0
}

func (c *Controller) idle(stop <-chan struct{}) {
	select {
	case <-c.wake:
	case <-stop:
	case <-c.clock.After(c.poll):
	}
}

// show seeks to index, reads one frame and emits position then frame.
func (c *Controller) show(src sonar.FrameSource, stop <-chan struct{}, index int) error {
	if err := src.Seek(index); err != nil {
		return fmt.Errorf("seek %d: %w", index, err)
	}
	f, err := src.ReadNext()
	if err != nil {
		return fmt.Errorf("read frame %d: %w", index, err)
	}
	if _, ok := src.(windowedSource); ok {
		// The window may have moved past index since it was clamped.
		index = f.Index()
	}
	c.mu.Lock()
	c.index = index
	c.mu.Unlock()

	if !c.emit(stop, Event{Type: EventPositionChanged, Index: index}) {
		return nil
	}
	select {
	case c.events <- Event{Type: EventFrameReady, Index: index, Frame: f, Timestamp: f.Timestamp()}:
	default:
		c.dropped.Add(1)
		monitoring.Debugf("[Playback] consumer behind, dropped frame %d", index)
	}
	return nil
}

func (c *Controller) fail(stop <-chan struct{}, err error) {
	kind := sonar.KindOf(err)
	log.Printf("[Playback] session ended (%s): %v", kind, err)
	if c.emit(stop, Event{Type: EventError, Kind: kind, Err: err}) {
		c.emit(stop, Event{Type: EventFinished})
	}
}

// emit blocks until the consumer takes ev or the loop is stopped.
func (c *Controller) emit(stop <-chan struct{}, ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-stop:
		return false
	}
}

func (c *Controller) tryEmit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
