package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// DatagramHandler consumes received datagrams. *l1datagrams.Reassembler
// implements it.
type DatagramHandler interface {
	HandleDatagram(b []byte) error
	Expire() error
	Stats() l1datagrams.ReassemblerStats
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Address     string                             // host:port to bind (default ":5700")
	RcvBuf      int                                // socket receive buffer; 0 keeps the OS default
	LogInterval time.Duration                      // stats reporting period (default: 1m)
	ReadTimeout time.Duration                      // deadline per read (default: 100ms)
	Handler     DatagramHandler                    // required
	Sockets     UDPSocketFactory                   // default: RealUDPSocketFactory
	Clock       timeutil.Clock                     // default: RealClock
	OnStats     func(l1datagrams.ReassemblerStats) // called every LogInterval
}

// Listener receives datagrams and hands them to a reassembler.
type Listener struct {
	cfg ListenerConfig
}

// NewListener creates a Listener. Handler is required.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Handler == nil {
		return nil, errors.New("listener requires a datagram handler")
	}
	if cfg.Address == "" {
		cfg.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = time.Minute
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.Sockets == nil {
		cfg.Sockets = RealUDPSocketFactory{}
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Listener{cfg: cfg}, nil
}

// Start receives until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.cfg.Sockets.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			log.Printf("[Listener] Warning: failed to set UDP receive buffer size to %d: %v", l.cfg.RcvBuf, err)
		}
	}
	log.Printf("[Listener] listening on %s", conn.LocalAddr())

	go l.reportStats(ctx)

	buffer := make([]byte, l1datagrams.MaxUDPPayload)
	for {
		if ctx.Err() != nil {
			log.Print("[Listener] stopping due to context cancellation")
			return ctx.Err()
		}
		// The deadline lets the loop observe cancellation and expire
		// partial frames while the sender is quiet. Sockets run on wall
		// time whatever Clock is injected.
		conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))

		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if err := l.cfg.Handler.Expire(); err != nil {
					monitoring.Debugf("[Listener] %v", err)
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Printf("[Listener] UDP read error: %v", err)
			continue
		}
		if err := l.cfg.Handler.HandleDatagram(buffer[:n]); err != nil {
			monitoring.Debugf("[Listener] datagram from %v: %v", from, err)
		}
	}
}

func (l *Listener) reportStats(ctx context.Context) {
	ticker := l.cfg.Clock.NewTicker(l.cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s := l.cfg.Handler.Stats()
			log.Printf("[Listener] datagrams=%d frames=%d incomplete=%d duplicates=%d orphans=%d malformed=%d",
				s.Datagrams, s.FramesDelivered, s.FramesIncomplete, s.Duplicates, s.Orphans, s.Malformed)
			if l.cfg.OnStats != nil {
				l.cfg.OnStats(s)
			}
		}
	}
}
