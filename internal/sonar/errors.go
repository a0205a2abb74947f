package sonar

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteFrame reports a frame whose datagrams did not all arrive.
	// The frame is dropped; the next frame proceeds independently.
	ErrIncompleteFrame = errors.New("incomplete frame")

	// ErrEndOfSource reports that a FrameSource has no frame at its cursor.
	ErrEndOfSource = errors.New("end of source")

	// ErrDecode reports a frame that exists but cannot be parsed.
	ErrDecode = errors.New("frame decode error")

	// ErrConfiguration reports degenerate fan or transport parameters.
	ErrConfiguration = errors.New("configuration error")
)

// ErrorKind classifies an error chain for consumers that only need the
// category, such as the playback error event.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTransportLoss
	KindSourceExhausted
	KindDecodeError
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransportLoss:
		return "transport_loss"
	case KindSourceExhausted:
		return "source_exhausted"
	case KindDecodeError:
		return "decode_error"
	case KindConfiguration:
		return "configuration_error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// KindOf maps err to its ErrorKind. Errors outside the taxonomy, such as
// I/O failures from an underlying file, count as decode errors because they
// end the session the same way.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrIncompleteFrame):
		return KindTransportLoss
	case errors.Is(err, ErrEndOfSource):
		return KindSourceExhausted
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindDecodeError
	}
}
