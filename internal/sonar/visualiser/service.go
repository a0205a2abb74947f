package visualiser

import (
	"context"

	"google.golang.org/grpc"

	"github.com/banshee-data/fanbeam/internal/sonar/playback"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "fanbeam.sonar.v1.SonarPlayer"

// SonarPlayerServer is the service implemented by Server.
type SonarPlayerServer interface {
	Play(context.Context, *Empty) (*playback.Status, error)
	Pause(context.Context, *Empty) (*playback.Status, error)
	FastForward(context.Context, *Empty) (*playback.Status, error)
	Rewind(context.Context, *Empty) (*playback.Status, error)
	Stop(context.Context, *Empty) (*playback.Status, error)
	Seek(context.Context, *SeekRequest) (*playback.Status, error)
	SetSource(context.Context, *SourceRequest) (*playback.Status, error)
	GetStatus(context.Context, *Empty) (*playback.Status, error)
	GetSettings(context.Context, *Empty) (*render.Settings, error)
	UpdateSettings(context.Context, *SettingsRequest) (*render.Settings, error)
	StreamFrames(*StreamRequest, grpc.ServerStream) error
}

func unary[Req, Resp any](name string, call func(SonarPlayerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			s := srv.(SonarPlayerServer)
			if interceptor == nil {
				return call(s, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes the service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SonarPlayerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Play", SonarPlayerServer.Play),
		unary("Pause", SonarPlayerServer.Pause),
		unary("FastForward", SonarPlayerServer.FastForward),
		unary("Rewind", SonarPlayerServer.Rewind),
		unary("Stop", SonarPlayerServer.Stop),
		unary("Seek", SonarPlayerServer.Seek),
		unary("SetSource", SonarPlayerServer.SetSource),
		unary("GetStatus", SonarPlayerServer.GetStatus),
		unary("GetSettings", SonarPlayerServer.GetSettings),
		unary("UpdateSettings", SonarPlayerServer.UpdateSettings),
	},
	Streams: []grpc.StreamDesc{{
		StreamName: "StreamFrames",
		Handler: func(srv any, stream grpc.ServerStream) error {
			req := new(StreamRequest)
			if err := stream.RecvMsg(req); err != nil {
				return err
			}
			return srv.(SonarPlayerServer).StreamFrames(req, stream)
		},
		ServerStreams: true,
	}},
	Metadata: "fanbeam/sonar/v1/player",
}

// RegisterService registers srv with a gRPC server created with
// ServerCodec.
func RegisterService(s grpc.ServiceRegistrar, srv SonarPlayerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the service. Every call uses the CBOR codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, callCodec())
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Play(ctx context.Context) (*playback.Status, error) {
	return invoke[playback.Status](ctx, c, "Play", &Empty{})
}

func (c *Client) Pause(ctx context.Context) (*playback.Status, error) {
	return invoke[playback.Status](ctx, c, "Pause", &Empty{})
}

func (c *Client) FastForward(ctx context.Context) (*playback.Status, error) {
	return invoke[playback.Status](ctx, c, "FastForward", &Empty{})
}

func (c *Client) Rewind(ctx context.Context) (*playback.Status, error) {
	return invoke[playback.Status](ctx, c, "Rewind", &Empty{})
}

func (c *Client) Stop(ctx context.Context) (*playback.Status, error) {
	return invoke[playback.Status](ctx, c, "Stop", &Empty{})
}

func (c *Client) Seek(ctx context.Context, index int) (*playback.Status, error) {
	return invoke[playback.Status](ctx, c, "Seek", &SeekRequest{Index: index})
}

func (c *Client) SetSource(ctx context.Context, path string) (*playback.Status, error) {
	return invoke[playback.Status](ctx, c, "SetSource", &SourceRequest{Path: path})
}

func (c *Client) GetStatus(ctx context.Context) (*playback.Status, error) {
	return invoke[playback.Status](ctx, c, "GetStatus", &Empty{})
}

func (c *Client) GetSettings(ctx context.Context) (*render.Settings, error) {
	return invoke[render.Settings](ctx, c, "GetSettings", &Empty{})
}

func (c *Client) UpdateSettings(ctx context.Context, req *SettingsRequest) (*render.Settings, error) {
	return invoke[render.Settings](ctx, c, "UpdateSettings", req)
}

// FrameStream receives rendered frames.
type FrameStream struct {
	cs grpc.ClientStream
}

func (s *FrameStream) Recv() (*FrameMessage, error) {
	m := new(FrameMessage)
	if err := s.cs.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// StreamFrames subscribes to rendered frames until ctx ends.
func (c *Client) StreamFrames(ctx context.Context, req *StreamRequest) (*FrameStream, error) {
	cs, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/StreamFrames", callCodec())
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &FrameStream{cs: cs}, nil
}
