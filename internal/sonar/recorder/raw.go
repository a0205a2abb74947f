package recorder

import (
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
)

// RawGeometry describes a headerless raw frame file: frames of identical
// geometry stored back to back in wire sample order.
type RawGeometry struct {
	Beams     int
	RangeBins int
	Depth     sonar.SampleDepth
	FPS       float64
}

// FrameBytes is the size of one stored frame.
func (g RawGeometry) FrameBytes() int {
	return g.Beams * g.RangeBins * g.Depth.BytesPerSample()
}

// Validate rejects geometries that cannot describe a frame.
func (g RawGeometry) Validate() error {
	if g.Beams <= 0 || g.RangeBins <= 0 || g.Beams > 0xFFFF || g.RangeBins > 0xFFFF {
		return fmt.Errorf("%w: raw geometry %dx%d", sonar.ErrConfiguration, g.RangeBins, g.Beams)
	}
	if !g.Depth.Valid() {
		return fmt.Errorf("%w: raw sample depth %d", sonar.ErrConfiguration, g.Depth)
	}
	return nil
}

// RawSource reads a raw frame file. A trailing partial frame is ignored.
type RawSource struct {
	file   *os.File
	geom   RawGeometry
	count  int
	cursor int
	buf    []byte
}

// OpenRaw opens path with the given geometry.
func OpenRaw(path string, g RawGeometry) (*RawSource, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat raw file: %w", err)
	}
	size := g.FrameBytes()
	count := int(st.Size() / int64(size))
	if rem := st.Size() % int64(size); rem != 0 {
		monitoring.Logf("[Recorder] %s: ignoring %d trailing bytes (frame size %d)", path, rem, size)
	}
	return &RawSource{file: f, geom: g, count: count, buf: make([]byte, size)}, nil
}

func (s *RawSource) FrameCount() int { return s.count }

func (s *RawSource) FPS() float64 { return sonar.EffectiveFPS(s.geom.FPS) }

func (s *RawSource) Seek(i int) error {
	if i < 0 || i > s.count {
		return fmt.Errorf("%w: seek %d of %d frames", sonar.ErrEndOfSource, i, s.count)
	}
	s.cursor = i
	return nil
}

func (s *RawSource) ReadNext() (*sonar.Frame, error) {
	if s.cursor >= s.count {
		return nil, sonar.ErrEndOfSource
	}
	off := int64(s.cursor) * int64(len(s.buf))
	if _, err := s.file.ReadAt(s.buf, off); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: raw frame %d truncated", sonar.ErrDecode, s.cursor)
		}
		return nil, fmt.Errorf("failed to read raw frame %d: %w", s.cursor, err)
	}
	f, err := sonar.FrameFromBytes(s.cursor, float64(s.cursor)/s.FPS(), s.geom.Beams, s.geom.RangeBins, s.geom.Depth, s.buf)
	if err != nil {
		return nil, err
	}
	s.cursor++
	return f, nil
}

func (s *RawSource) Close() error { return s.file.Close() }

// WriteRaw appends frames to w in raw layout.
func WriteRaw(w io.Writer, frames ...*sonar.Frame) error {
	var buf []byte
	for _, f := range frames {
		buf = f.AppendBytes(buf[:0])
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
