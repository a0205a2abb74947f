// Package monitor serves the HTTP status pages of the sonar tools: health,
// playback and transport JSON, transport charts and a live raster viewer.
package monitor

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/fanbeam/internal/httputil"
	"github.com/banshee-data/fanbeam/internal/sonar/playback"
	"github.com/banshee-data/fanbeam/internal/sonardb"
	"github.com/banshee-data/fanbeam/internal/version"
)

//go:embed status.html
var statusFS embed.FS

var statusTemplate = template.Must(template.ParseFS(statusFS, "status.html"))

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Service string                   // reported by /health and the status page
	Status  func() playback.Status   // optional playback status
	History *StatsHistory            // optional live transport samples
	DB      *sonardb.DB              // optional recordings catalog and stored samples
	Frames  *FrameHub                // optional live viewer
	Routes  func(mux *http.ServeMux) // extra routes, e.g. admin pages
}

// WebServer handles the HTTP interface of a sonar tool.
type WebServer struct {
	cfg     WebServerConfig
	server  *http.Server
	started time.Time
}

func NewWebServer(cfg WebServerConfig) *WebServer {
	if cfg.Service == "" {
		cfg.Service = "sonar"
	}
	ws := &WebServer{cfg: cfg, started: time.Now()}
	ws.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the route table.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatusPage)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/transport", ws.handleTransport)
	mux.HandleFunc("/api/recordings", ws.handleRecordings)
	mux.HandleFunc("/charts/transport", ws.handleTransportChart)
	if ws.cfg.Frames != nil {
		mux.Handle("/ws/frames", ws.cfg.Frames)
	}
	if ws.cfg.Routes != nil {
		ws.cfg.Routes(mux)
	}
	return mux
}

// Start serves until ctx is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Monitor] HTTP server on %s", ws.cfg.Address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if ws.cfg.Frames != nil {
		ws.cfg.Frames.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Monitor] HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("[Monitor] HTTP server force close error: %v", err)
		}
	}
	log.Printf("[Monitor] HTTP server stopped")
	return nil
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   ws.cfg.Service,
		"version":   version.Version,
		"git_sha":   version.GitSHA,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.cfg.Status == nil {
		httputil.NotFound(w, "no playback session")
		return
	}
	httputil.WriteJSONOK(w, ws.cfg.Status())
}

// handleTransport returns live samples and rates; with ?stored=1 it reads
// the database instead. Query params: session, limit.
func (ws *WebServer) handleTransport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	if q.Get("stored") != "" {
		if ws.cfg.DB == nil {
			httputil.NotFound(w, "no database configured")
			return
		}
		limit, ok := httputil.QueryInt(w, r, "limit", 0)
		if !ok {
			return
		}
		samples, err := ws.cfg.DB.TransportSamples(q.Get("session"), limit)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]any{"samples": samples})
		return
	}
	if ws.cfg.History == nil {
		httputil.NotFound(w, "no transport stats")
		return
	}
	httputil.WriteJSONOK(w, map[string]any{
		"samples": ws.cfg.History.Samples(),
		"rates":   ws.cfg.History.Rates(),
	})
}

func (ws *WebServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.cfg.DB == nil {
		httputil.NotFound(w, "no database configured")
		return
	}
	limit, ok := httputil.QueryInt(w, r, "limit", 100)
	if !ok {
		return
	}
	recs, err := ws.cfg.DB.Recordings(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if recs == nil {
		recs = []sonardb.Recording{}
	}
	httputil.WriteJSONOK(w, recs)
}

func (ws *WebServer) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := struct {
		Service string
		Version string
		Uptime  string
		Status  *playback.Status
		Latest  any
		Viewer  bool
		Viewers int
	}{
		Service: ws.cfg.Service,
		Version: version.Version,
		Uptime:  time.Since(ws.started).Round(time.Second).String(),
		Viewer:  ws.cfg.Frames != nil,
	}
	if ws.cfg.Status != nil {
		st := ws.cfg.Status()
		data.Status = &st
	}
	if ws.cfg.History != nil {
		if s := ws.cfg.History.Latest(); s != nil {
			data.Latest = s
		}
	}
	if ws.cfg.Frames != nil {
		data.Viewers = ws.cfg.Frames.Clients()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, data); err != nil {
		log.Printf("[Monitor] status page: %v", err)
	}
}
