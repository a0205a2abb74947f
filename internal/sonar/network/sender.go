package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// SenderConfig configures a Sender.
type SenderConfig struct {
	Address      string // destination host:port (default "127.0.0.1:5700")
	MaxChunkSize int    // default: l1datagrams.DefaultMaxChunkSize
	SwathDeg     uint16
	MaxRange     uint16
	FrameIDs     bool           // send the extended header with a frame counter
	Clock        timeutil.Clock // paces Stream
	Conn         DatagramWriter // optional; dialled from Address when nil
}

// SenderStats counts what a Sender has written.
type SenderStats struct {
	FramesSent  uint64 `json:"frames_sent"`
	Datagrams   uint64 `json:"datagrams"`
	Bytes       uint64 `json:"bytes"`
	WriteErrors uint64 `json:"write_errors"`
}

// Sender writes frames as chunked datagrams. Delivery is best effort: a
// failed write is counted and the rest of the frame is still sent.
type Sender struct {
	cfg  SenderConfig
	conn DatagramWriter

	mu      sync.Mutex
	frameID uint32
	stats   SenderStats
}

// NewSender validates cfg and opens the destination socket.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = l1datagrams.DefaultMaxChunkSize
	}
	if err := l1datagrams.CheckMaxChunkSize(cfg.MaxChunkSize); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Address == "" {
		cfg.Address = fmt.Sprintf("127.0.0.1:%d", DefaultPort)
	}
	conn := cfg.Conn
	if conn == nil {
		addr, err := net.ResolveUDPAddr("udp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve destination address: %w", err)
		}
		c, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			return nil, fmt.Errorf("failed to create send connection: %w", err)
		}
		conn = c
	}
	return &Sender{cfg: cfg, conn: conn}, nil
}

// Send encodes f and writes its datagrams in sequence order.
func (s *Sender) Send(f *sonar.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := l1datagrams.HeaderFor(f, s.cfg.SwathDeg, s.cfg.MaxRange)
	if s.cfg.FrameIDs {
		h.HasFrameID = true
		h.FrameID = s.frameID
	}
	datagrams, err := l1datagrams.EncodeFrame(h, f, s.cfg.MaxChunkSize)
	if err != nil {
		return err
	}
	s.frameID++

	var firstErr error
	for _, d := range datagrams {
		if _, err := s.conn.Write(d); err != nil {
			s.stats.WriteErrors++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.stats.Datagrams++
		s.stats.Bytes += uint64(len(d))
	}
	s.stats.FramesSent++
	if firstErr != nil {
		return fmt.Errorf("frame %d: %w", f.Index(), firstErr)
	}
	return nil
}

// Stream sends every frame of src, sleeping 1/fps between frames. With
// loop it rewinds at the end; otherwise it returns nil once the source is
// exhausted. Write errors are logged and do not stop the stream.
func (s *Sender) Stream(ctx context.Context, src sonar.FrameSource, loop bool) error {
	interval := time.Duration(float64(time.Second) / sonar.EffectiveFPS(src.FPS()))
	log.Printf("[Sender] streaming %d frames to %s at %.2f fps", src.FrameCount(), s.cfg.Address, sonar.EffectiveFPS(src.FPS()))

	var logged uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := src.ReadNext()
		if errors.Is(err, sonar.ErrEndOfSource) {
			if !loop || src.FrameCount() == 0 {
				st := s.Stats()
				log.Printf("[Sender] done: %d frames, %d datagrams, %d write errors", st.FramesSent, st.Datagrams, st.WriteErrors)
				return nil
			}
			if err := src.Seek(0); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := s.Send(f); err != nil {
			if errors.Is(err, sonar.ErrConfiguration) {
				return err
			}
			// Log the first failure and then every hundredth.
			if logged%100 == 0 {
				log.Printf("[Sender] %v", err)
			}
			logged++
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.cfg.Clock.After(interval):
		}
	}
}

// Stats returns a snapshot of the counters.
func (s *Sender) Stats() SenderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close closes the destination socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
