// Package sources resolves a source string to a sonar.FrameSource.
//
//	synthetic:[?frames=N&beams=N&bins=N&swath=D&range=M&fps=F&noise=X&seed=N&depth=16]
//	capture.pcap[?port=N]            capture.pcapng[?port=N]
//	frames.raw?beams=N&bins=N[&depth=16&fps=F]
//	/path/to/sonar_2025-05-03_14-02-11.250.sonlog
//	udp://[host]:port
package sources

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/sonar/network"
	"github.com/banshee-data/fanbeam/internal/sonar/recorder"
	"github.com/banshee-data/fanbeam/internal/sonar/synthetic"
)

// Options tune sources that are created rather than read.
type Options struct {
	LiveCapacity int     // frames kept by udp:// sources
	LiveFPS      float64 // nominal rate of udp:// sources
	RcvBuf       int     // socket receive buffer for udp:// sources
	Sockets      network.UDPSocketFactory

	// OnDelivery observes every frame reassembled by a udp:// source.
	OnDelivery func(l1datagrams.Delivery)
}

// Opener returns a sonar.Opener using opts.
func Opener(opts Options) sonar.Opener {
	return func(path string) (sonar.FrameSource, error) { return Open(path, opts) }
}

// Open resolves path.
func Open(path string, opts Options) (sonar.FrameSource, error) {
	switch {
	case strings.HasPrefix(path, "synthetic:"):
		q, err := url.ParseQuery(strings.TrimPrefix(strings.TrimPrefix(path, "synthetic:"), "?"))
		if err != nil {
			return nil, fmt.Errorf("%w: synthetic source %q: %v", sonar.ErrConfiguration, path, err)
		}
		return openSynthetic(q)
	case strings.HasPrefix(path, "udp://"):
		return openUDP(strings.TrimPrefix(path, "udp://"), opts)
	}

	file, q, err := splitQuery(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(file)); {
	case ext == ".pcap" || ext == ".pcapng":
		port, err := intParam(q, "port", 0)
		if err != nil {
			return nil, err
		}
		return network.OpenPcap(file, port)
	case ext == ".raw" || ext == ".bin":
		return openRaw(file, q)
	case recorder.IsRecording(file):
		return recorder.Open(file)
	}
	return nil, fmt.Errorf("%w: unrecognised source %q", sonar.ErrConfiguration, path)
}

func splitQuery(path string) (string, url.Values, error) {
	file, query, found := strings.Cut(path, "?")
	if !found {
		return path, url.Values{}, nil
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return "", nil, fmt.Errorf("%w: source query %q: %v", sonar.ErrConfiguration, query, err)
	}
	return file, q, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", sonar.ErrConfiguration, key, s)
	}
	return v, nil
}

func floatParam(q url.Values, key string, def float64) (float64, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", sonar.ErrConfiguration, key, s)
	}
	return v, nil
}

func depthParam(q url.Values) (sonar.SampleDepth, error) {
	switch q.Get("depth") {
	case "", "8":
		return sonar.Depth8, nil
	case "16":
		return sonar.Depth16, nil
	}
	return 0, fmt.Errorf("%w: depth=%q, want 8 or 16", sonar.ErrConfiguration, q.Get("depth"))
}

func openSynthetic(q url.Values) (sonar.FrameSource, error) {
	cfg := synthetic.DefaultConfig()
	var err error
	set := func(dst *int, key string) {
		if err == nil {
			*dst, err = intParam(q, key, *dst)
		}
	}
	setF := func(dst *float64, key string) {
		if err == nil {
			*dst, err = floatParam(q, key, *dst)
		}
	}
	set(&cfg.Frames, "frames")
	set(&cfg.Beams, "beams")
	set(&cfg.RangeBins, "bins")
	setF(&cfg.SwathDeg, "swath")
	setF(&cfg.MaxRange, "range")
	setF(&cfg.FPS, "fps")
	setF(&cfg.Noise, "noise")
	seed := int(cfg.Seed)
	set(&seed, "seed")
	if err != nil {
		return nil, err
	}
	cfg.Seed = int64(seed)
	if cfg.Depth, err = depthParam(q); err != nil {
		return nil, err
	}
	return synthetic.New(cfg)
}

func openRaw(file string, q url.Values) (sonar.FrameSource, error) {
	var g recorder.RawGeometry
	var err error
	if g.Beams, err = intParam(q, "beams", 0); err != nil {
		return nil, err
	}
	if g.RangeBins, err = intParam(q, "bins", 0); err != nil {
		return nil, err
	}
	if g.FPS, err = floatParam(q, "fps", 0); err != nil {
		return nil, err
	}
	if g.Depth, err = depthParam(q); err != nil {
		return nil, err
	}
	return recorder.OpenRaw(file, g)
}

// openUDP starts a receiver feeding a LiveSource. Closing the source stops
// the receiver.
func openUDP(addr string, opts Options) (sonar.FrameSource, error) {
	live := network.NewLiveSource(opts.LiveCapacity, opts.LiveFPS)
	reasm := l1datagrams.NewReassembler(l1datagrams.ReassemblerConfig{
		OnFrame: func(d l1datagrams.Delivery) {
			live.PushDelivery(d)
			if opts.OnDelivery != nil {
				opts.OnDelivery(d)
			}
		},
	})
	l, err := network.NewListener(network.ListenerConfig{
		Address: addr,
		RcvBuf:  opts.RcvBuf,
		Handler: reasm,
		Sockets: opts.Sockets,
	})
	if err != nil {
		reasm.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := l.Start(ctx); err != nil && ctx.Err() == nil {
			monitoring.Logf("[Sources] udp receiver on %s stopped: %v", addr, err)
		}
	}()
	live.OnClose(func() {
		cancel()
		<-done
		reasm.Close()
	})
	return live, nil
}
