// Package stream serves read-back radar frames to websocket clients.
package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"radarsweep/engine"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hello is the first, text, message every client receives
type Hello struct {
	ClientID    string `json:"client_id"`
	Format      string `json:"format"`
	HeaderBytes int    `json:"header_bytes"`
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub keeps the latest frame and broadcasts it to every connected client.
// Publish never blocks the render loop: frames published faster than they
// can be sent replace each other.
type Hub struct {
	logger *slog.Logger

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*client

	frameMu sync.Mutex
	latest  []byte // encoded
	notify  chan struct{}
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]*client),
		notify:  make(chan struct{}, 1),
	}
}

var _ engine.FrameSink = (*Hub)(nil)

// Publish copies f as the latest frame and wakes the broadcaster
func (h *Hub) Publish(f engine.Frame) {
	h.frameMu.Lock()
	h.latest = EncodeFrame(h.latest[:0], f)
	h.frameMu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Hub) latestFrame() []byte {
	h.frameMu.Lock()
	defer h.frameMu.Unlock()
	if len(h.latest) == 0 {
		return nil
	}
	return append([]byte(nil), h.latest...)
}

// Run broadcasts published frames until ctx is done, then disconnects
// every client
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-h.notify:
			if msg := h.latestFrame(); msg != nil {
				h.broadcast(msg)
			}
		}
	}
}

// broadcast writes outside clientsMu so a slow client cannot hold up
// connects and removals
func (h *Hub) broadcast(msg []byte) {
	var failed []*client
	for _, c := range h.snapshot() {
		if err := c.write(websocket.BinaryMessage, msg); err != nil {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		h.logger.Warn("dropping stream client", "client", c.id)
		h.remove(c)
	}
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{id: uuid.New(), conn: conn}
	h.clientsMu.Lock()
	h.clients[conn] = c
	n := len(h.clients)
	h.clientsMu.Unlock()
	h.logger.Info("stream client connected", "client", c.id, "clients", n)
	return c
}

func (h *Hub) remove(c *client) {
	h.clientsMu.Lock()
	_, ok := h.clients[c.conn]
	delete(h.clients, c.conn)
	h.clientsMu.Unlock()
	if ok {
		c.conn.Close()
		h.logger.Info("stream client disconnected", "client", c.id)
	}
}

func (h *Hub) snapshot() []*client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	all := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	return all
}

func (h *Hub) closeAll() {
	for _, c := range h.snapshot() {
		h.remove(c)
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleWebSocket(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := h.add(conn)
	defer h.remove(c)

	hello := Hello{ClientID: c.id.String(), Format: "bgra8", HeaderBytes: HeaderSize}
	if err := c.writeJSON(hello); err != nil {
		return
	}
	if msg := h.latestFrame(); msg != nil {
		if err := c.write(websocket.BinaryMessage, msg); err != nil {
			return
		}
	}

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Router returns the HTTP routes of the stream server. stats may be nil.
func (h *Hub) Router(stats func() engine.Stats) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", h.handleWebSocket)
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "clients": h.Clients()})
	})
	r.GET("/stats", func(ctx *gin.Context) {
		if stats == nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "no engine"})
			return
		}
		ctx.JSON(http.StatusOK, stats())
	})
	return r
}
