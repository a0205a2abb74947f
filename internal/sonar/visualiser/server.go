package visualiser

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/playback"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
)

// MaxRasterSide bounds the raster dimensions a client may request.
const MaxRasterSide = 8192

// Player is the playback surface the service drives.
type Player interface {
	Play()
	Pause()
	FastForward()
	Rewind()
	Stop()
	Seek(index int)
	SetSource(path string) error
	Status() playback.Status
}

// Renderer is the render surface the service drives.
type Renderer interface {
	Settings() render.Settings
	Apply(render.Settings)
	Last() *render.Rendered
}

var _ SonarPlayerServer = (*Server)(nil)

// Server implements SonarPlayerServer. It accepts one frame subscriber at
// a time; a second StreamFrames call fails with ResourceExhausted.
type Server struct {
	player   Player
	renderer Renderer

	mu      sync.Mutex
	sub     *subscriber
	dropped atomic.Uint64
}

type subscriber struct {
	id string
	ch chan *render.Rendered
}

// NewServer creates a Server.
func NewServer(p Player, r Renderer) *Server {
	return &Server{player: p, renderer: r}
}

// NewGRPCServer creates a grpc.Server with the CBOR codec and the service
// registered.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	gs := grpc.NewServer(append([]grpc.ServerOption{ServerCodec()}, opts...)...)
	RegisterService(gs, srv)
	return gs
}

// Publish offers r to the subscriber, if any. It never blocks: when the
// subscriber is behind, the oldest queued raster is dropped.
func (s *Server) Publish(r *render.Rendered) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return
	}
	for {
		select {
		case s.sub.ch <- r:
			return
		default:
		}
		select {
		case <-s.sub.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

// Dropped counts rasters discarded because the subscriber was slow.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// Subscribed reports whether a client is streaming.
func (s *Server) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

func (s *Server) status() *playback.Status {
	st := s.player.Status()
	return &st
}

func (s *Server) Play(context.Context, *Empty) (*playback.Status, error) {
	s.player.Play()
	return s.status(), nil
}

func (s *Server) Pause(context.Context, *Empty) (*playback.Status, error) {
	s.player.Pause()
	return s.status(), nil
}

func (s *Server) FastForward(context.Context, *Empty) (*playback.Status, error) {
	s.player.FastForward()
	return s.status(), nil
}

func (s *Server) Rewind(context.Context, *Empty) (*playback.Status, error) {
	s.player.Rewind()
	return s.status(), nil
}

func (s *Server) Stop(context.Context, *Empty) (*playback.Status, error) {
	s.player.Stop()
	return s.status(), nil
}

func (s *Server) Seek(_ context.Context, req *SeekRequest) (*playback.Status, error) {
	if req.Index < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "seek index %d is negative", req.Index)
	}
	s.player.Seek(req.Index)
	return s.status(), nil
}

func (s *Server) SetSource(_ context.Context, req *SourceRequest) (*playback.Status, error) {
	if req.Path == "" {
		return nil, status.Error(codes.InvalidArgument, "source path is empty")
	}
	if err := s.player.SetSource(req.Path); err != nil {
		log.Printf("[gRPC] SetSource %s: %v", req.Path, err)
		return nil, status.Error(sourceCode(err), err.Error())
	}
	return s.status(), nil
}

func sourceCode(err error) codes.Code {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return codes.NotFound
	case errors.Is(err, fs.ErrPermission):
		return codes.PermissionDenied
	case errors.Is(err, sonar.ErrConfiguration):
		return codes.InvalidArgument
	case errors.Is(err, sonar.ErrDecode):
		return codes.DataLoss
	}
	return codes.Internal
}

func (s *Server) GetStatus(context.Context, *Empty) (*playback.Status, error) {
	return s.status(), nil
}

func (s *Server) GetSettings(context.Context, *Empty) (*render.Settings, error) {
	st := s.renderer.Settings()
	return &st, nil
}

// UpdateSettings merges the set fields into the current settings. Raster
// sizes outside [1, MaxRasterSide] are rejected; degenerate fan parameters
// are accepted because the mapper degrades around them.
func (s *Server) UpdateSettings(_ context.Context, req *SettingsRequest) (*render.Settings, error) {
	next := s.renderer.Settings()
	req.apply(&next)
	if next.Width < 1 || next.Height < 1 || next.Width > MaxRasterSide || next.Height > MaxRasterSide {
		return nil, status.Errorf(codes.InvalidArgument, "raster %dx%d outside 1..%d", next.Width, next.Height, MaxRasterSide)
	}
	if err := next.Validate(); err != nil {
		log.Printf("[gRPC] applying degraded settings: %v", err)
	}
	s.renderer.Apply(next)
	return &next, nil
}

// StreamFrames sends rendered rasters until the client goes away.
func (s *Server) StreamFrames(req *StreamRequest, stream grpc.ServerStream) error {
	enc := req.Encoding
	if enc == "" {
		enc = EncodingPNG
	}
	if enc != EncodingPNG && enc != EncodingRGBA {
		return status.Errorf(codes.InvalidArgument, "unknown encoding %q", req.Encoding)
	}

	sub := &subscriber{id: uuid.NewString(), ch: make(chan *render.Rendered, 4)}
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return status.Error(codes.ResourceExhausted, "another client is already streaming frames")
	}
	s.sub = sub
	s.mu.Unlock()
	log.Printf("[gRPC] stream client %s connected (%s)", sub.id, enc)

	defer func() {
		s.mu.Lock()
		if s.sub == sub {
			s.sub = nil
		}
		s.mu.Unlock()
		log.Printf("[gRPC] stream client %s disconnected", sub.id)
	}()

	if req.SendLast {
		if r := s.renderer.Last(); r != nil {
			if err := send(stream, r, enc); err != nil {
				return err
			}
		}
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-sub.ch:
			if err := send(stream, r, enc); err != nil {
				return err
			}
		}
	}
}

func send(stream grpc.ServerStream, r *render.Rendered, enc string) error {
	msg, err := frameMessage(r, enc)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(msg)
}

func frameMessage(r *render.Rendered, enc string) (*FrameMessage, error) {
	b := r.Image.Bounds()
	msg := &FrameMessage{Width: b.Dx(), Height: b.Dy(), Encoding: enc, Overlay: r.Overlay}
	if enc == EncodingRGBA {
		msg.Data = r.Image.Pix
		return msg, nil
	}
	data, err := render.EncodePNG(r.Image)
	if err != nil {
		return nil, err
	}
	msg.Data = data
	return msg, nil
}
