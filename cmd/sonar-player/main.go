// Command sonar-player plays a sonar source, remaps each frame onto a fan
// raster and serves playback control plus the rendered frames over gRPC
// and a browser monitor.
//
// Usage:
//
//	sonar-player -source /data/sonar_2025-05-03_14-02-11.250.sonlog
//	sonar-player -source udp://:5700 -listen :8080
//	sonar-player -source 'synthetic:?frames=300&depth=16'
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/fanbeam/internal/config"
	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/security"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/monitor"
	"github.com/banshee-data/fanbeam/internal/sonar/playback"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
	"github.com/banshee-data/fanbeam/internal/sonar/sources"
	"github.com/banshee-data/fanbeam/internal/sonar/visualiser"
	"github.com/banshee-data/fanbeam/internal/sonardb"
	"github.com/banshee-data/fanbeam/internal/version"
)

var (
	configFile  = flag.String("config", config.DefaultConfigPath, "Path to JSON configuration file")
	sourcePath  = flag.String("source", "synthetic:", "Initial source: recording, .pcap, .raw, udp://host:port or synthetic:")
	grpcAddr    = flag.String("grpc", "", "gRPC listen address (default from config)")
	listen      = flag.String("listen", "", "HTTP monitor listen address (default from config)")
	dbFile      = flag.String("db", "", "SQLite recordings catalog to serve (optional)")
	mediaRoots  = flag.String("media-root", "", "Comma-separated directories file sources must lie in (default: unrestricted)")
	startPaused = flag.Bool("paused", false, "Show frame 0 and wait for Play")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("sonar-player"))
		return
	}
	monitoring.SetDebug(*debug)

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *grpcAddr == "" {
		*grpcAddr = cfg.GetGRPCAddress()
	}
	if *listen == "" {
		*listen = cfg.GetHTTPAddress()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sonardb.DB
	if *dbFile != "" {
		db, err = sonardb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	hub := monitor.NewFrameHub()
	var srv *visualiser.Server
	pipeline := render.NewPipeline(render.Config{
		Settings: cfg.RenderSettings(),
		Debounce: cfg.GetDebounce(),
		OnRender: func(r *render.Rendered) {
			srv.Publish(r)
			hub.Publish(r)
		},
	})
	defer pipeline.Close()

	var roots []string
	for _, r := range strings.Split(*mediaRoots, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	open := sources.Opener(sources.Options{
		LiveCapacity: cfg.GetLiveCapacity(),
		RcvBuf:       cfg.GetRcvBuf(),
	})
	controller := playback.New(playback.Config{
		// Recordings named by their start time get wall-clock overlay stamps.
		Opener: func(path string) (sonar.FrameSource, error) {
			if err := security.CheckSource(path, roots); err != nil {
				return nil, err
			}
			src, err := open(path)
			if err != nil {
				return nil, err
			}
			base, _ := sonar.BaseTimestamp(path, nil)
			pipeline.SetBaseTimestamp(base)
			return src, nil
		},
		PollInterval: cfg.GetPollInterval(),
		StartPaused:  *startPaused || cfg.GetStartPaused(),
	})
	defer controller.Close()
	srv = visualiser.NewServer(controller, pipeline)

	if err := controller.SetSource(*sourcePath); err != nil {
		log.Fatalf("Failed to open source %s: %v", *sourcePath, err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipeline.Run(ctx, controller.Events()); err != nil && ctx.Err() == nil {
			log.Printf("Render pipeline stopped: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", *grpcAddr, err)
	}
	gs := visualiser.NewGRPCServer(srv)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("gRPC player service on %s", lis.Addr())
		if err := gs.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		stopped := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			gs.Stop()
		}
	}()

	web := monitor.NewWebServer(monitor.WebServerConfig{
		Address: *listen,
		Service: "sonar-player",
		Status:  controller.Status,
		DB:      db,
		Frames:  hub,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := web.Start(ctx); err != nil {
			log.Printf("HTTP monitor error: %v", err)
			stop()
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
