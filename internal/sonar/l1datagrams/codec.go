package l1datagrams

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

const (
	// SeqSize is the big-endian sequence number prefixed to every datagram.
	SeqSize = 4
	// DefaultMaxChunkSize bounds each datagram, sequence number included.
	DefaultMaxChunkSize = 60000
	// MaxUDPPayload is the largest IPv4 UDP payload.
	MaxUDPPayload = 65507
)

// Chunk is one received datagram split into its sequence number and data.
type Chunk struct {
	Seq  uint32
	Data []byte
}

// ParseDatagram splits a datagram. Data aliases b.
func ParseDatagram(b []byte) (Chunk, error) {
	if len(b) < SeqSize {
		return Chunk{}, fmt.Errorf("%w: %d byte datagram", sonar.ErrDecode, len(b))
	}
	return Chunk{Seq: binary.BigEndian.Uint32(b), Data: b[SeqSize:]}, nil
}

// ChunkStride is the number of frame bytes carried per datagram.
func ChunkStride(maxChunkSize int) int {
	return maxChunkSize - SeqSize
}

// ChunkCount is the number of datagrams needed for frameSize bytes.
func ChunkCount(frameSize, maxChunkSize int) int {
	stride := ChunkStride(maxChunkSize)
	if stride <= 0 || frameSize <= 0 {
		return 0
	}
	return (frameSize + stride - 1) / stride
}

// CheckMaxChunkSize reports ErrConfiguration for sizes that leave no room
// for data or exceed a UDP datagram.
func CheckMaxChunkSize(maxChunkSize int) error {
	if maxChunkSize <= SeqSize || maxChunkSize > MaxUDPPayload {
		return fmt.Errorf("%w: max chunk size %d outside (%d, %d]", sonar.ErrConfiguration, maxChunkSize, SeqSize, MaxUDPPayload)
	}
	return nil
}

// Encode splits header||payload into datagrams of at most maxChunkSize
// bytes. Datagram i carries sequence number i followed by stream bytes
// [i*(max-4), (i+1)*(max-4)).
func Encode(h FrameHeader, payload []byte, maxChunkSize int) ([][]byte, error) {
	if err := CheckMaxChunkSize(maxChunkSize); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if len(payload) != h.PayloadSize() {
		return nil, fmt.Errorf("%w: payload %d bytes, header implies %d", sonar.ErrConfiguration, len(payload), h.PayloadSize())
	}

	stream := make([]byte, 0, h.FrameSize())
	stream = h.AppendBinary(stream)
	stream = append(stream, payload...)

	stride := ChunkStride(maxChunkSize)
	out := make([][]byte, 0, ChunkCount(len(stream), maxChunkSize))
	for seq, off := uint32(0), 0; off < len(stream); seq, off = seq+1, off+stride {
		end := min(off+stride, len(stream))
		d := make([]byte, SeqSize, SeqSize+end-off)
		binary.BigEndian.PutUint32(d, seq)
		out = append(out, append(d, stream[off:end]...))
	}
	return out, nil
}

// EncodeFrame encodes f's samples under h.
func EncodeFrame(h FrameHeader, f *sonar.Frame, maxChunkSize int) ([][]byte, error) {
	return Encode(h, f.Bytes(), maxChunkSize)
}

// Decode reassembles one frame from its datagrams in any order.
func Decode(datagrams [][]byte) (FrameHeader, []byte, error) {
	chunks := make([]Chunk, 0, len(datagrams))
	for _, d := range datagrams {
		c, err := ParseDatagram(d)
		if err != nil {
			return FrameHeader{}, nil, err
		}
		chunks = append(chunks, c)
	}
	return DecodeChunks(chunks)
}

// DecodeChunks drops duplicate sequence numbers (first copy wins), sorts,
// and requires a contiguous run starting at 0 whose total length equals
// the length the header implies. Any gap or length mismatch reports
// ErrIncompleteFrame; a truncated frame is never returned.
func DecodeChunks(chunks []Chunk) (FrameHeader, []byte, error) {
	if len(chunks) == 0 {
		return FrameHeader{}, nil, fmt.Errorf("%w: no datagrams", sonar.ErrIncompleteFrame)
	}
	uniq := make([]Chunk, 0, len(chunks))
	seen := make(map[uint32]struct{}, len(chunks))
	for _, c := range chunks {
		if _, dup := seen[c.Seq]; dup {
			continue
		}
		seen[c.Seq] = struct{}{}
		uniq = append(uniq, c)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].Seq < uniq[j].Seq })

	var buf bytes.Buffer
	for i, c := range uniq {
		if c.Seq != uint32(i) {
			return FrameHeader{}, nil, fmt.Errorf("%w: missing sequence %d", sonar.ErrIncompleteFrame, i)
		}
		buf.Write(c.Data)
	}
	stream := buf.Bytes()

	h, err := ParseHeader(stream)
	if err != nil {
		return FrameHeader{}, nil, err
	}
	if len(stream) != h.FrameSize() {
		return FrameHeader{}, nil, fmt.Errorf("%w: reassembled %d bytes, header implies %d", sonar.ErrIncompleteFrame, len(stream), h.FrameSize())
	}
	return h, stream[h.Size():], nil
}

// DecodeFrame decodes datagrams into a Frame with the given index and
// timestamp.
func DecodeFrame(datagrams [][]byte, index int, timestamp float64) (*sonar.Frame, FrameHeader, error) {
	h, payload, err := Decode(datagrams)
	if err != nil {
		return nil, h, err
	}
	f, err := sonar.FrameFromBytes(index, timestamp, int(h.Beams), int(h.RangeBins), h.Depth, payload)
	if err != nil {
		return nil, h, err
	}
	return f, h, nil
}
