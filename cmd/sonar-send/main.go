// Command sonar-send streams a sonar source to a receiver as chunked UDP
// datagrams, paced at the source frame rate.
//
// Raw frame files carry no geometry, so -beams, -bins and -16bit describe
// them unless the input already has a query string:
//
//	sonar-send -input frames.raw -beams 256 -bins 1024 -16bit -ip 10.0.0.5
//	sonar-send -input 'synthetic:?frames=900' -loop
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/fanbeam/internal/config"
	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar/network"
	"github.com/banshee-data/fanbeam/internal/sonar/sources"
	"github.com/banshee-data/fanbeam/internal/sonardb"
	"github.com/banshee-data/fanbeam/internal/version"
)

var (
	configFile  = flag.String("config", config.DefaultConfigPath, "Path to JSON configuration file")
	input       = flag.String("input", "synthetic:", "Source to send: recording, .pcap, .raw, or synthetic:")
	swath       = flag.Float64("swath", 0, "Swath angle in degrees written to the frame header (default from config)")
	maxRange    = flag.Float64("range", 0, "Maximum range in metres written to the frame header (default from config)")
	is16bit     = flag.Bool("16bit", false, "Raw input holds 16-bit big-endian samples")
	beams       = flag.Int("beams", 256, "Beams per raw frame")
	bins        = flag.Int("bins", 1024, "Range bins per raw frame")
	fps         = flag.Float64("fps", 0, "Frame rate for raw input (0 uses the default)")
	ip          = flag.String("ip", "", "Receiver IP address (default from config)")
	port        = flag.Int("port", 0, "Receiver UDP port (default from config)")
	maxPayload  = flag.Int("max-payload", 0, "Maximum datagram size in bytes including the sequence number (default from config)")
	frameIDs    = flag.Bool("frame-ids", false, "Send the extended header with a frame counter")
	loop        = flag.Bool("loop", false, "Restart from the first frame at the end of the source")
	dbFile      = flag.String("db", "", "SQLite database for sender statistics (optional)")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("sonar-send"))
		return
	}
	monitoring.SetDebug(*debug)

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	addr, err := destination(cfg.GetSendAddress(), *ip, *port)
	if err != nil {
		log.Fatalf("Invalid destination: %v", err)
	}
	if *swath == 0 {
		*swath = cfg.RenderSettings().SwathDeg
	}
	if *maxRange == 0 {
		*maxRange = cfg.RenderSettings().MaxRange
	}
	if *maxPayload == 0 {
		*maxPayload = cfg.GetMaxChunkSize()
	}

	path := rawSourcePath(*input, *beams, *bins, *is16bit, *fps)
	src, err := sources.Open(path, sources.Options{})
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	defer src.Close()

	sender, err := network.NewSender(network.SenderConfig{
		Address:      addr,
		MaxChunkSize: *maxPayload,
		SwathDeg:     uint16(*swath),
		MaxRange:     uint16(*maxRange),
		FrameIDs:     *frameIDs || cfg.GetFrameIDs(),
	})
	if err != nil {
		log.Fatalf("Failed to create sender: %v", err)
	}
	defer sender.Close()

	var db *sonardb.DB
	if *dbFile != "" {
		db, err = sonardb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := uuid.NewString()
	record := func() {
		if db == nil {
			return
		}
		if err := db.RecordTransportSample(sonardb.SenderSample(session, time.Now(), sender.Stats())); err != nil {
			log.Printf("Failed to record sender stats: %v", err)
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.GetStatsInterval())
		defer ticker.Stop()
		for {
			select {
			case <-streamCtx.Done():
				return
			case <-ticker.C:
				st := sender.Stats()
				log.Printf("frames=%d datagrams=%d bytes=%d write_errors=%d", st.FramesSent, st.Datagrams, st.Bytes, st.WriteErrors)
				record()
			}
		}
	}()

	err = sender.Stream(streamCtx, src, *loop)
	cancel()
	wg.Wait()
	record()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Stream failed: %v", err)
	}
}

// destination overrides the host and port of the configured send address
// with whichever of ip and port are set.
func destination(configured, ip string, port int) (string, error) {
	host, p, err := net.SplitHostPort(configured)
	if err != nil {
		return "", err
	}
	if ip != "" {
		host = ip
	}
	if port != 0 {
		if port < 0 || port > 0xFFFF {
			return "", fmt.Errorf("port %d out of range", port)
		}
		p = strconv.Itoa(port)
	}
	return net.JoinHostPort(host, p), nil
}

// rawSourcePath attaches the geometry query to a bare raw file path.
func rawSourcePath(path string, beams, bins int, is16bit bool, fps float64) string {
	ext := strings.ToLower(filepath.Ext(path))
	if strings.Contains(path, "?") || (ext != ".raw" && ext != ".bin") {
		return path
	}
	q := url.Values{}
	q.Set("beams", strconv.Itoa(beams))
	q.Set("bins", strconv.Itoa(bins))
	if is16bit {
		q.Set("depth", "16")
	}
	if fps > 0 {
		q.Set("fps", strconv.FormatFloat(fps, 'f', -1, 64))
	}
	return path + "?" + q.Encode()
}
