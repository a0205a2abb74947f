package sonar

// DefaultFPS is assumed when a source does not report a usable frame rate.
const DefaultFPS = 30.0

// FrameSource is a seekable, indexed sequence of frames.
//
// ReadNext returns the frame at the cursor and advances it by one; at the
// end it returns ErrEndOfSource. Implementations are not required to be
// safe for concurrent use: the playback producer is the only goroutine that
// moves the cursor.
type FrameSource interface {
	// FrameCount returns the number of frames currently available. Live
	// sources may report a growing count.
	FrameCount() int

	// FPS returns the nominal frame rate.
	FPS() float64

	// Seek moves the cursor to index.
	Seek(index int) error

	// ReadNext reads the frame at the cursor and advances it.
	ReadNext() (*Frame, error)

	// Close releases the underlying resource.
	Close() error
}

// Opener opens a FrameSource from a path or source URL.
type Opener func(path string) (FrameSource, error)

// ClampIndex limits i to [0, total-1]. With total <= 0 it returns 0.
func ClampIndex(i, total int) int {
	if total <= 0 || i < 0 {
		return 0
	}
	if i > total-1 {
		return total - 1
	}
	return i
}

// EffectiveFPS returns fps, or DefaultFPS when fps is not positive.
func EffectiveFPS(fps float64) float64 {
	if fps > 0 {
		return fps
	}
	return DefaultFPS
}
