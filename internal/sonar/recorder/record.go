package recorder

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/fanbeam/internal/sonar"
)

// Field numbers of a frame record. The layout is protobuf-compatible so
// recordings can be inspected with generic protobuf tooling.
const (
	fieldIndex     protowire.Number = 1
	fieldTimestamp protowire.Number = 2
	fieldBeams     protowire.Number = 3
	fieldRangeBins protowire.Number = 4
	fieldDepth     protowire.Number = 5
	fieldSamples   protowire.Number = 6
	fieldWallNs    protowire.Number = 7
)

// frameRecord is one decoded record.
type frameRecord struct {
	index     uint64
	timestamp float64
	beams     uint64
	rangeBins uint64
	depth     uint64
	samples   []byte
	wallNs    uint64
}

func appendRecord(b []byte, f *sonar.Frame, wallNs int64) []byte {
	b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Index()))
	b = protowire.AppendTag(b, fieldTimestamp, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(f.Timestamp()))
	b = protowire.AppendTag(b, fieldBeams, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Beams()))
	b = protowire.AppendTag(b, fieldRangeBins, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.RangeBins()))
	b = protowire.AppendTag(b, fieldDepth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Depth()))
	b = protowire.AppendTag(b, fieldSamples, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(f.PayloadSize()))
	b = f.AppendBytes(b)
	if wallNs > 0 {
		b = protowire.AppendTag(b, fieldWallNs, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(wallNs))
	}
	return b
}

func parseRecord(b []byte) (frameRecord, error) {
	var rec frameRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, fmt.Errorf("%w: record tag: %v", sonar.ErrDecode, protowire.ParseError(n))
		}
		b = b[n:]

		var v uint64
		switch {
		case num == fieldTimestamp && typ == protowire.Fixed64Type:
			v, n = protowire.ConsumeFixed64(b)
			rec.timestamp = math.Float64frombits(v)
		case num == fieldSamples && typ == protowire.BytesType:
			var s []byte
			s, n = protowire.ConsumeBytes(b)
			rec.samples = s
		case typ == protowire.VarintType && num >= fieldIndex && num <= fieldWallNs:
			v, n = protowire.ConsumeVarint(b)
			switch num {
			case fieldIndex:
				rec.index = v
			case fieldBeams:
				rec.beams = v
			case fieldRangeBins:
				rec.rangeBins = v
			case fieldDepth:
				rec.depth = v
			case fieldWallNs:
				rec.wallNs = v
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return rec, fmt.Errorf("%w: record field %d: %v", sonar.ErrDecode, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if rec.beams == 0 || rec.rangeBins == 0 || rec.samples == nil {
		return rec, fmt.Errorf("%w: record missing geometry or samples", sonar.ErrDecode)
	}
	return rec, nil
}

func (rec frameRecord) frame(index int) (*sonar.Frame, error) {
	if rec.beams > math.MaxUint16 || rec.rangeBins > math.MaxUint16 || rec.depth > math.MaxUint8 {
		return nil, fmt.Errorf("%w: record geometry %dx%d depth %d", sonar.ErrDecode, rec.rangeBins, rec.beams, rec.depth)
	}
	return sonar.FrameFromBytes(index, rec.timestamp, int(rec.beams), int(rec.rangeBins), sonar.SampleDepth(rec.depth), rec.samples)
}
