// Package visualiser serves playback control and the rendered frame stream
// over gRPC. Messages are plain Go structs carried with a CBOR codec, so
// the service needs no generated code. The codec is attached to this
// service's server and client only; it is not registered process-wide.
package visualiser

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc"
)

// CodecName is the gRPC content subtype ("application/grpc+cbor").
const CodecName = "cbor"

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCodec() cborCodec {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: enc, dec: dec}
}

func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
func (cborCodec) Name() string                         { return CodecName }

var codec = newCodec()

// ServerCodec makes a grpc.Server use the CBOR codec for every message.
// NewGRPCServer adds it; a server built elsewhere needs it before
// RegisterService.
func ServerCodec() grpc.ServerOption { return grpc.ForceServerCodec(codec) }

// callCodec is the client side of ServerCodec.
func callCodec() grpc.CallOption { return grpc.ForceCodec(codec) }
