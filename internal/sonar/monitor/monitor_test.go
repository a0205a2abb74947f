package monitor

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/playback"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
	"github.com/banshee-data/fanbeam/internal/sonardb"
	"github.com/banshee-data/fanbeam/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func sample(sec int, datagrams, frames, incomplete uint64) sonardb.TransportSample {
	return sonardb.TransportSample{
		SessionID:        "rx",
		Role:             sonardb.RoleRecv,
		Time:             time.Unix(int64(sec), 0),
		Datagrams:        datagrams,
		Bytes:            datagrams * 1024 * 1024,
		Frames:           frames,
		FramesIncomplete: incomplete,
	}
}

func TestStatsHistory(t *testing.T) {
	h := NewStatsHistory(3)
	assert.Nil(t, h.Latest())
	assert.Empty(t, h.Rates())

	h.Add(sample(0, 0, 0, 0))
	h.Add(sample(2, 100, 60, 2))
	h.Add(sample(4, 300, 120, 2))
	h.Add(sample(5, 400, 150, 3)) // evicts t=0

	samples := h.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, int64(2), samples[0].Time.Unix())
	assert.Equal(t, uint64(400), h.Latest().Datagrams)

	rates := h.Rates()
	require.Len(t, rates, 2)
	assert.InDelta(t, 100.0, rates[0].DatagramsPerSec, 1e-9)
	assert.InDelta(t, 30.0, rates[0].FramesPerSec, 1e-9)
	assert.InDelta(t, 100.0, rates[0].MBPerSec, 1e-9)
	assert.InDelta(t, 0.0, rates[0].IncompletePerSec, 1e-9)
	assert.InDelta(t, 1.0, rates[1].IncompletePerSec, 1e-9)
}

func TestStatsHistorySkipsResets(t *testing.T) {
	h := NewStatsHistory(0)
	h.Add(sample(0, 100, 10, 0))
	h.Add(sample(0, 200, 20, 0)) // no elapsed time
	h.Add(sample(1, 5, 1, 0))    // counters restarted
	h.Add(sample(2, 15, 2, 0))
	rates := h.Rates()
	require.Len(t, rates, 1)
	assert.InDelta(t, 10.0, rates[0].DatagramsPerSec, 1e-9)
	h.LogRate()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestWebServerRoutes(t *testing.T) {
	history := NewStatsHistory(0)
	history.Add(sample(0, 0, 0, 0))
	history.Add(sample(1, 10, 3, 0))

	ws := NewWebServer(WebServerConfig{
		Service: "sonar-recv",
		Status:  func() playback.Status { return playback.Status{Source: "udp://:5700", Total: 3, Mode: playback.Playing} },
		History: history,
		Frames:  NewFrameHub(),
	})
	h := ws.Handler()

	w := get(t, h, "/health")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var health map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "sonar-recv", health["service"])

	w = get(t, h, "/api/status")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var st playback.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "udp://:5700", st.Source)

	w = get(t, h, "/api/transport")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var transport struct {
		Samples []sonardb.TransportSample `json:"samples"`
		Rates   []Rate                    `json:"rates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transport))
	assert.Len(t, transport.Samples, 2)
	require.Len(t, transport.Rates, 1)
	assert.InDelta(t, 3.0, transport.Rates[0].FramesPerSec, 1e-9)

	w = get(t, h, "/charts/transport")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), "echarts")

	w = get(t, h, "/")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := w.Body.String()
	assert.Contains(t, body, "sonar-recv")
	assert.Contains(t, body, "udp://:5700")
	assert.Contains(t, body, "/ws/frames")

	testutil.AssertStatusCode(t, get(t, h, "/nope").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, get(t, h, "/api/recordings").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, get(t, h, "/api/transport?stored=1").Code, http.StatusNotFound)

	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestWebServerWithoutSources(t *testing.T) {
	h := NewWebServer(WebServerConfig{}).Handler()
	testutil.AssertStatusCode(t, get(t, h, "/api/status").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, get(t, h, "/api/transport").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, get(t, h, "/charts/transport").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, get(t, h, "/ws/frames").Code, http.StatusNotFound)
	w := get(t, h, "/")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.NotContains(t, w.Body.String(), "/ws/frames")
}

func TestWebServerDatabaseRoutes(t *testing.T) {
	db, err := sonardb.Open(filepath.Join(t.TempDir(), "sonar.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RecordTransportSample(sample(1, 10, 1, 0)))

	h := NewWebServer(WebServerConfig{DB: db}).Handler()

	w := get(t, h, "/api/recordings")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.JSONEq(t, "[]", w.Body.String())

	w = get(t, h, "/api/transport?stored=1&session=rx")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), `"session_id":"rx"`)

	testutil.AssertStatusCode(t, get(t, h, "/api/transport?stored=1&limit=x").Code, http.StatusBadRequest)
}

func TestFrameHubStreamsRasters(t *testing.T) {
	hub := NewFrameHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	// No viewers: nothing to encode.
	hub.Publish(&render.Rendered{})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, time.Millisecond)

	p := render.NewPipeline(render.Config{})
	defer p.Close()
	r, err := p.Render(testutil.GradientFrame(t, 12, 16, 32, sonar.Depth8))
	require.NoError(t, err)
	hub.Publish(r)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	var overlay render.Overlay
	require.NoError(t, json.Unmarshal(data, &overlay))
	assert.Equal(t, 12, overlay.FrameIndex)

	kind, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, r.Image.Bounds(), img.Bounds())

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, time.Millisecond)
}

func TestFrameHubDropsForSlowViewer(t *testing.T) {
	hub := NewFrameHub()
	c := &hubClient{send: make(chan rasterMessage, clientQueue), done: make(chan struct{})}
	hub.clients[c] = struct{}{}

	p := render.NewPipeline(render.Config{Settings: render.Settings{Width: 8, Height: 8, SwathDeg: 90, MaxRange: 5}})
	defer p.Close()
	r, err := p.Render(testutil.GradientFrame(t, 0, 4, 4, sonar.Depth8))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		hub.Publish(r)
	}
	assert.Equal(t, uint64(3), hub.Dropped())
	assert.Len(t, c.send, clientQueue)
}
