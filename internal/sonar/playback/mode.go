package playback

import "fmt"

// Mode is the transport state of a Controller. There is no terminal mode:
// reaching either end of the source falls back to Paused.
type Mode int

const (
	Paused Mode = iota
	Playing
	FastForward
	Rewind
)

// FastStep is how many frames FastForward and Rewind move per tick.
const FastStep = 30

// Step is the per-tick index change for m. Paused does not step.
func (m Mode) Step() int {
	switch m {
	case Playing:
		return 1
	case FastForward:
		return FastStep
	case Rewind:
		return -FastStep
	default:
		return 0
	}
}

func (m Mode) String() string {
	switch m {
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	case FastForward:
		return "fast_forward"
	case Rewind:
		return "rewind"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode is the inverse of String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Paused, Playing, FastForward, Rewind} {
		if m.String() == s {
			return m, nil
		}
	}
	return Paused, fmt.Errorf("unknown playback mode %q", s)
}

// MarshalText lets Mode appear by name in JSON status documents.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// atEnd reports whether m should fall back to Paused after landing on index.
func (m Mode) atEnd(index, total int) bool {
	switch m {
	case Playing, FastForward:
		return index >= total-1
	case Rewind:
		return index <= 0
	}
	return false
}
