package render

import (
	"sync"
	"time"

	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// DefaultDebounce is the coalescing window for parameter changes.
const DefaultDebounce = 200 * time.Millisecond

// Debouncer collapses bursts of Trigger calls into one call of fn, made
// once delay has passed without a further Trigger. Callers store the new
// values before triggering, so fn always sees the latest ones.
type Debouncer struct {
	clock timeutil.Clock
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   timeutil.Timer
	pending bool
	closed  bool
	fires   uint64
	done    chan struct{}
}

// NewDebouncer creates a Debouncer. A nil clock uses the real clock.
func NewDebouncer(clock timeutil.Clock, delay time.Duration, fn func()) *Debouncer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{clock: clock, delay: delay, fn: fn, done: make(chan struct{})}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer == nil {
		d.timer = d.clock.NewTimer(d.delay)
	} else {
		d.timer.Reset(d.delay)
	}
	if !d.pending {
		d.pending = true
		go d.wait(d.timer)
	}
}

// Pending reports whether a call to fn is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Fires counts completed calls to fn.
func (d *Debouncer) Fires() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fires
}

func (d *Debouncer) wait(t timeutil.Timer) {
	select {
	case <-t.C():
	case <-d.done:
		return
	}
	d.mu.Lock()
	d.pending = false
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	d.fn()

	d.mu.Lock()
	d.fires++
	d.mu.Unlock()
}

// Close cancels any scheduled call.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.done)
}
