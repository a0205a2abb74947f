package l1datagrams

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

const (
	// HeaderSize is the legacy header: four uint16 fields and a uint32 flag.
	HeaderSize = 12
	// ExtendedHeaderSize adds a trailing uint32 frame identifier.
	ExtendedHeaderSize = HeaderSize + 4

	// FlagFrameID marks a header that carries a frame identifier.
	FlagFrameID uint32 = 0x100

	depthMask  uint32 = 0xFF
	knownFlags        = depthMask | FlagFrameID
)

// FrameHeader precedes the samples of every frame send. All fields are
// big-endian on the wire.
type FrameHeader struct {
	Beams     uint16
	RangeBins uint16
	SwathDeg  uint16
	MaxRange  uint16 // metres
	Depth     sonar.SampleDepth

	// HasFrameID selects the extended header. FrameID increments per send.
	HasFrameID bool
	FrameID    uint32
}

// HeaderFor describes f with the given fan parameters.
func HeaderFor(f *sonar.Frame, swathDeg, maxRange uint16) FrameHeader {
	return FrameHeader{
		Beams:     uint16(f.Beams()),
		RangeBins: uint16(f.RangeBins()),
		SwathDeg:  swathDeg,
		MaxRange:  maxRange,
		Depth:     f.Depth(),
	}
}

// Size is the encoded header length.
func (h FrameHeader) Size() int {
	if h.HasFrameID {
		return ExtendedHeaderSize
	}
	return HeaderSize
}

// PayloadSize is the number of sample bytes that follow the header.
func (h FrameHeader) PayloadSize() int {
	return int(h.Beams) * int(h.RangeBins) * h.Depth.BytesPerSample()
}

// FrameSize is the full header||payload length a receiver must collect.
func (h FrameHeader) FrameSize() int {
	return h.Size() + h.PayloadSize()
}

// Validate rejects headers that cannot describe a frame.
func (h FrameHeader) Validate() error {
	if h.Beams == 0 || h.RangeBins == 0 {
		return fmt.Errorf("%w: header grid %dx%d", sonar.ErrConfiguration, h.RangeBins, h.Beams)
	}
	if !h.Depth.Valid() {
		return fmt.Errorf("%w: header depth %d", sonar.ErrConfiguration, h.Depth)
	}
	return nil
}

// AppendBinary appends the wire encoding of h to b.
func (h FrameHeader) AppendBinary(b []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, h.Beams)
	b = binary.BigEndian.AppendUint16(b, h.RangeBins)
	b = binary.BigEndian.AppendUint16(b, h.SwathDeg)
	b = binary.BigEndian.AppendUint16(b, h.MaxRange)
	flag := uint32(h.Depth)
	if h.HasFrameID {
		flag |= FlagFrameID
		b = binary.BigEndian.AppendUint32(b, flag)
		return binary.BigEndian.AppendUint32(b, h.FrameID)
	}
	return binary.BigEndian.AppendUint32(b, flag)
}

// ParseHeader decodes the header at the start of b. A buffer shorter than
// the header reports ErrIncompleteFrame; unknown flag bits or depth values
// report ErrDecode.
func ParseHeader(b []byte) (FrameHeader, error) {
	if len(b) < HeaderSize {
		return FrameHeader{}, fmt.Errorf("%w: %d header bytes, need %d", sonar.ErrIncompleteFrame, len(b), HeaderSize)
	}
	flag := binary.BigEndian.Uint32(b[8:12])
	if flag&^knownFlags != 0 {
		return FrameHeader{}, fmt.Errorf("%w: unknown header flags 0x%x", sonar.ErrDecode, flag)
	}
	h := FrameHeader{
		Beams:     binary.BigEndian.Uint16(b[0:2]),
		RangeBins: binary.BigEndian.Uint16(b[2:4]),
		SwathDeg:  binary.BigEndian.Uint16(b[4:6]),
		MaxRange:  binary.BigEndian.Uint16(b[6:8]),
		Depth:     sonar.SampleDepth(flag & depthMask),
	}
	if !h.Depth.Valid() {
		return FrameHeader{}, fmt.Errorf("%w: sample depth flag %d", sonar.ErrDecode, flag&depthMask)
	}
	if flag&FlagFrameID != 0 {
		if len(b) < ExtendedHeaderSize {
			return FrameHeader{}, fmt.Errorf("%w: %d header bytes, need %d", sonar.ErrIncompleteFrame, len(b), ExtendedHeaderSize)
		}
		h.HasFrameID = true
		h.FrameID = binary.BigEndian.Uint32(b[12:16])
	}
	return h, nil
}
