package playback

import (
	"fmt"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

// EventType identifies what an Event carries.
type EventType int

const (
	// EventPositionChanged carries Index. It always precedes the matching
	// EventFrameReady.
	EventPositionChanged EventType = iota
	// EventFrameReady carries Frame and Timestamp. Frame events are dropped
	// rather than queued when the consumer falls behind.
	EventFrameReady
	// EventModeChanged carries Mode whenever the producer observes a new
	// transport mode, including automatic pauses at either end.
	EventModeChanged
	// EventError carries Kind and Err for a read failure. The session ends.
	EventError
	// EventFinished is the last event of a producer loop.
	EventFinished
)

func (t EventType) String() string {
	switch t {
	case EventPositionChanged:
		return "position_changed"
	case EventFrameReady:
		return "frame_ready"
	case EventModeChanged:
		return "mode_changed"
	case EventError:
		return "error"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one message from the producer loop to its consumer.
type Event struct {
	Type      EventType
	Index     int
	Frame     *sonar.Frame
	Timestamp float64
	Mode      Mode
	Kind      sonar.ErrorKind
	Err       error
}
