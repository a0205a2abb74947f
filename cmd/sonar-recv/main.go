// Command sonar-recv receives chunked sonar frames over UDP, reassembles
// them, optionally records them, and logs transport statistics to SQLite.
// A browser monitor shows the live fan and the transport rates.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/banshee-data/fanbeam/internal/config"
	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/sonar/monitor"
	"github.com/banshee-data/fanbeam/internal/sonar/network"
	"github.com/banshee-data/fanbeam/internal/sonar/recorder"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
	"github.com/banshee-data/fanbeam/internal/sonardb"
	"github.com/banshee-data/fanbeam/internal/timeutil"
	"github.com/banshee-data/fanbeam/internal/version"
)

var (
	configFile  = flag.String("config", config.DefaultConfigPath, "Path to JSON configuration file")
	udpAddr     = flag.String("udp-addr", "", "UDP bind address (default from config)")
	listen      = flag.String("listen", "", "HTTP monitor listen address (default from config)")
	dbFile      = flag.String("db", "", "Path to the SQLite database file (default from config)")
	record      = flag.Bool("record", false, "Record received frames")
	recordDir   = flag.String("record-dir", "", "Directory for recordings (default from config, then the temp dir)")
	noMonitor   = flag.Bool("no-monitor", false, "Disable the HTTP monitor")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("sonar-recv"))
		return
	}
	monitoring.SetDebug(*debug)

	cfg, err := config.LoadOrDefault(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *udpAddr == "" {
		*udpAddr = cfg.GetListenAddress()
	}
	if *listen == "" {
		*listen = cfg.GetHTTPAddress()
	}
	if *dbFile == "" {
		*dbFile = cfg.GetDBPath()
	}
	if *recordDir == "" {
		*recordDir = cfg.GetRecordDir()
	}

	db, err := sonardb.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	clock := timeutil.RealClock{}
	sess := &session{
		id:      uuid.NewString(),
		source:  "udp://" + *udpAddr,
		clock:   clock,
		db:      db,
		history: monitor.NewStatsHistory(monitor.DefaultHistory),
	}
	if *record {
		sess.record = true
		if *recordDir != "" {
			sess.recordPath = recorder.DefaultPath(*recordDir, clock.Now())
		}
	}

	var hub *monitor.FrameHub
	if !*noMonitor {
		hub = monitor.NewFrameHub()
		sess.pipeline = render.NewPipeline(render.Config{
			Settings: cfg.RenderSettings(),
			Debounce: cfg.GetDebounce(),
			OnRender: hub.Publish,
		})
		defer sess.pipeline.Close()
	}

	reasm := l1datagrams.NewReassembler(l1datagrams.ReassemblerConfig{
		Timeout: cfg.GetReassemblyTimeout(),
		Clock:   clock,
		OnFrame: sess.handle,
	})
	listener, err := network.NewListener(network.ListenerConfig{
		Address:     *udpAddr,
		RcvBuf:      cfg.GetRcvBuf(),
		LogInterval: cfg.GetStatsInterval(),
		Handler:     reasm,
		Clock:       clock,
		OnStats:     sess.sample,
	})
	if err != nil {
		log.Fatalf("Failed to create listener: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("UDP listener error: %v", err)
			stop()
		}
	}()

	if !*noMonitor {
		web := monitor.NewWebServer(monitor.WebServerConfig{
			Address: *listen,
			Service: "sonar-recv",
			History: sess.history,
			DB:      db,
			Frames:  hub,
			Routes: func(mux *http.ServeMux) {
				if err := db.AttachAdminRoutes(mux); err != nil {
					log.Printf("Failed to attach admin routes: %v", err)
				}
			},
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.Start(ctx); err != nil {
				log.Printf("HTTP monitor error: %v", err)
				stop()
			}
		}()
	}

	wg.Wait()

	// The listener has stopped; drain queued frames before finishing the recording.
	reasm.Close()
	sess.sample(reasm.Stats())
	if err := sess.close(); err != nil {
		log.Printf("Failed to finish recording: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
