package sonar

import (
	"encoding/binary"
	"fmt"
)

// SampleDepth is the width of one intensity sample.
type SampleDepth uint8

const (
	// Depth8 is one unsigned byte per sample.
	Depth8 SampleDepth = iota
	// Depth16 is one big-endian uint16 per sample.
	Depth16
)

// BytesPerSample returns 1 for 8-bit frames and 2 for 16-bit frames.
func (d SampleDepth) BytesPerSample() int {
	if d == Depth16 {
		return 2
	}
	return 1
}

// MaxValue is the largest sample representable at this depth.
func (d SampleDepth) MaxValue() uint16 {
	if d == Depth16 {
		return 0xFFFF
	}
	return 0xFF
}

// Valid reports whether d is a known depth.
func (d SampleDepth) Valid() bool {
	return d == Depth8 || d == Depth16
}

func (d SampleDepth) String() string {
	switch d {
	case Depth8:
		return "8bit"
	case Depth16:
		return "16bit"
	default:
		return fmt.Sprintf("SampleDepth(%d)", uint8(d))
	}
}

// Frame is one sonar ping: a [rangeBins][beams] grid of intensity samples.
// Row r holds range bin r for every beam, column b is one beam. A Frame is
// immutable once constructed; only View exposes the backing slice.
type Frame struct {
	index     int
	timestamp float64
	beams     int
	rangeBins int
	depth     SampleDepth
	samples   []uint16
}

// NewFrame validates the geometry and copies samples into a new Frame.
// samples must be row-major with len == beams*rangeBins.
func NewFrame(index int, timestamp float64, beams, rangeBins int, depth SampleDepth, samples []uint16) (*Frame, error) {
	if err := checkGeometry(beams, rangeBins, depth); err != nil {
		return nil, err
	}
	if len(samples) != beams*rangeBins {
		return nil, fmt.Errorf("%w: %d samples for %dx%d grid", ErrDecode, len(samples), rangeBins, beams)
	}
	max := depth.MaxValue()
	buf := make([]uint16, len(samples))
	for i, v := range samples {
		if v > max {
			return nil, fmt.Errorf("%w: sample %d = %d exceeds %s range", ErrDecode, i, v, depth)
		}
		buf[i] = v
	}
	return &Frame{
		index:     index,
		timestamp: timestamp,
		beams:     beams,
		rangeBins: rangeBins,
		depth:     depth,
		samples:   buf,
	}, nil
}

// FrameFromBytes decodes raw sample bytes as carried on the wire: one byte
// per sample for Depth8, big-endian uint16 for Depth16.
func FrameFromBytes(index int, timestamp float64, beams, rangeBins int, depth SampleDepth, raw []byte) (*Frame, error) {
	if err := checkGeometry(beams, rangeBins, depth); err != nil {
		return nil, err
	}
	n := beams * rangeBins
	if want := n * depth.BytesPerSample(); len(raw) != want {
		return nil, fmt.Errorf("%w: got %d sample bytes, want %d", ErrDecode, len(raw), want)
	}
	samples := make([]uint16, n)
	if depth == Depth16 {
		for i := range samples {
			samples[i] = binary.BigEndian.Uint16(raw[2*i:])
		}
	} else {
		for i, b := range raw {
			samples[i] = uint16(b)
		}
	}
	return &Frame{
		index:     index,
		timestamp: timestamp,
		beams:     beams,
		rangeBins: rangeBins,
		depth:     depth,
		samples:   samples,
	}, nil
}

func checkGeometry(beams, rangeBins int, depth SampleDepth) error {
	if beams <= 0 || rangeBins <= 0 {
		return fmt.Errorf("%w: invalid grid %dx%d", ErrDecode, rangeBins, beams)
	}
	if beams > 0xFFFF || rangeBins > 0xFFFF {
		return fmt.Errorf("%w: grid %dx%d exceeds uint16 header fields", ErrDecode, rangeBins, beams)
	}
	if !depth.Valid() {
		return fmt.Errorf("%w: unknown sample depth %d", ErrDecode, depth)
	}
	return nil
}

// Index is the position of the frame within its source.
func (f *Frame) Index() int { return f.index }

// Timestamp is the acquisition time in seconds, relative to the source start
// unless the source carries absolute time.
func (f *Frame) Timestamp() float64 { return f.timestamp }

// Beams is the number of angular columns.
func (f *Frame) Beams() int { return f.beams }

// RangeBins is the number of distance rows.
func (f *Frame) RangeBins() int { return f.rangeBins }

// Depth is the sample width.
func (f *Frame) Depth() SampleDepth { return f.depth }

// At returns the sample at range bin r, beam b. Out-of-grid coordinates
// return 0.
func (f *Frame) At(r, b int) uint16 {
	if r < 0 || r >= f.rangeBins || b < 0 || b >= f.beams {
		return 0
	}
	return f.samples[r*f.beams+b]
}

// Samples returns a copy of the row-major sample grid.
func (f *Frame) Samples() []uint16 {
	out := make([]uint16, len(f.samples))
	copy(out, f.samples)
	return out
}

// View returns the row-major sample grid without copying. The slice is
// shared with the frame and must not be modified; render and analysis hot
// paths use it to avoid a per-frame allocation.
func (f *Frame) View() []uint16 { return f.samples }

// PayloadSize is the number of wire bytes the samples occupy.
func (f *Frame) PayloadSize() int {
	return len(f.samples) * f.depth.BytesPerSample()
}

// Bytes encodes the samples in wire order (see FrameFromBytes).
func (f *Frame) Bytes() []byte {
	return f.AppendBytes(make([]byte, 0, f.PayloadSize()))
}

// AppendBytes appends the wire encoding of the samples to dst.
func (f *Frame) AppendBytes(dst []byte) []byte {
	if f.depth == Depth16 {
		for _, v := range f.samples {
			dst = binary.BigEndian.AppendUint16(dst, v)
		}
		return dst
	}
	for _, v := range f.samples {
		dst = append(dst, byte(v))
	}
	return dst
}

// Reindexed returns a Frame sharing this frame's samples with a new index
// and timestamp. Sharing is safe because frames are never mutated.
func (f *Frame) Reindexed(index int, timestamp float64) *Frame {
	c := *f
	c.index = index
	c.timestamp = timestamp
	return &c
}
