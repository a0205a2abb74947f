package render

import (
	"testing"
	"time"

	"github.com/banshee-data/fanbeam/internal/timeutil"
)

func expectFire(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced function did not run")
	}
}

func expectQuiet(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("debounced function ran early")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	fired := make(chan struct{}, 8)
	d := NewDebouncer(clock, 200*time.Millisecond, func() { fired <- struct{}{} })
	defer d.Close()

	for i := 0; i < 5; i++ {
		d.Trigger()
		clock.Advance(50 * time.Millisecond)
	}
	expectQuiet(t, fired)
	if !d.Pending() {
		t.Fatal("expected a pending call")
	}

	clock.Advance(150 * time.Millisecond)
	expectFire(t, fired)

	clock.Advance(time.Second)
	expectQuiet(t, fired)
	deadline := time.Now().Add(time.Second)
	for d.Fires() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := d.Fires(); got != 1 {
		t.Errorf("Fires = %d, want 1", got)
	}
}

func TestDebouncerSeparateBursts(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	fired := make(chan struct{}, 8)
	d := NewDebouncer(clock, 100*time.Millisecond, func() { fired <- struct{}{} })
	defer d.Close()

	d.Trigger()
	clock.Advance(100 * time.Millisecond)
	expectFire(t, fired)

	d.Trigger()
	d.Trigger()
	clock.Advance(100 * time.Millisecond)
	expectFire(t, fired)
	expectQuiet(t, fired)
}

func TestDebouncerClose(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	fired := make(chan struct{}, 1)
	d := NewDebouncer(clock, 0, func() { fired <- struct{}{} })

	d.Trigger()
	d.Close()
	clock.Advance(time.Hour)
	expectQuiet(t, fired)

	d.Trigger()
	d.Close()
	if d.Pending() {
		t.Error("Trigger after Close scheduled a call")
	}
}
