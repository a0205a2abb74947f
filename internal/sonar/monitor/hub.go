package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar/render"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10

	// clientQueue bounds rasters waiting for one browser.
	clientQueue = 2
)

// rasterMessage is a published raster, encoded once for every client.
// Each is sent as a JSON text message followed by the PNG as a binary
// message.
type rasterMessage struct {
	overlay []byte
	png     []byte
}

type hubClient struct {
	conn *websocket.Conn
	send chan rasterMessage
	done chan struct{}
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// FrameHub pushes rendered rasters to browser viewers over websockets.
// Publish never blocks on a slow client; that client's oldest queued raster
// is dropped instead.
type FrameHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	dropped atomic.Uint64
}

func NewFrameHub() *FrameHub {
	return &FrameHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// Clients is the number of connected viewers.
func (h *FrameHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts rasters discarded for slow viewers.
func (h *FrameHub) Dropped() uint64 { return h.dropped.Load() }

// Publish encodes r and queues it for every viewer.
func (h *FrameHub) Publish(r *render.Rendered) {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	if n == 0 || r == nil || r.Image == nil {
		return
	}

	overlay, err := json.Marshal(r.Overlay)
	if err != nil {
		log.Printf("[Monitor] encode overlay: %v", err)
		return
	}
	png, err := render.EncodePNG(r.Image)
	if err != nil {
		log.Printf("[Monitor] encode raster: %v", err)
		return
	}
	msg := rasterMessage{overlay: overlay, png: png}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		for queued := false; !queued; {
			select {
			case c.send <- msg:
				queued = true
			default:
				select {
				case <-c.send:
					h.dropped.Add(1)
				default:
				}
			}
		}
	}
}

// ServeHTTP upgrades the request and streams rasters until the viewer
// disconnects.
func (h *FrameHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Debugf("[Monitor] websocket upgrade: %v", err)
		return
	}
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &hubClient{conn: conn, send: make(chan rasterMessage, clientQueue), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Printf("[Monitor] viewer %s connected", r.RemoteAddr)

	go h.writeLoop(c)

	// Viewers send nothing useful; reading keeps pongs and close frames
	// flowing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	log.Printf("[Monitor] viewer %s disconnected", r.RemoteAddr)
}

func (h *FrameHub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *FrameHub) writeLoop(c *hubClient) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	defer h.remove(c)

	write := func(kind int, payload []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, payload)
	}
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-c.send:
			if err := write(websocket.TextMessage, msg.overlay); err != nil {
				return
			}
			if err := write(websocket.BinaryMessage, msg.png); err != nil {
				return
			}
		}
	}
}

// Close disconnects every viewer.
func (h *FrameHub) Close() {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}
