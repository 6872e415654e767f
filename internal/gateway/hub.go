package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// wsConn is the slice of *websocket.Conn the hub needs. Tests register
// fakes through it.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Hub is the in-core realtime gateway: a registry of WebSocket connections
// keyed by the folder scope they subscribed to. A connection with an empty
// scope receives every broadcast.
type Hub struct {
	mu     sync.Mutex
	conns  map[wsConn]string
	closed bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[wsConn]string)}
}

var _ Gateway = (*Hub)(nil)

// Handler upgrades GET /ws requests and keeps the connection registered
// until the client goes away. Subscription scope comes from the folderId
// query parameter.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		scope := c.Query("folderId")
		h.register(c, scope)
		defer h.unregister(c)

		// Inbound frames are ignored; the read loop exists to detect
		// the peer closing.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// Upgrade gates the /ws route: non-upgrade requests get 426.
func Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *Hub) register(c wsConn, scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		_ = c.Close()
		return
	}
	h.conns[c] = scope
}

func (h *Hub) unregister(c wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// Broadcast writes message to every connection subscribed to scope. A
// failed write marks the connection stale: it is closed and dropped, the
// same way the upstream gateway prunes gone connections. Only a closed hub
// is an error.
func (h *Hub) Broadcast(_ context.Context, scope string, message []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrUnavailable
	}

	for c, s := range h.conns {
		if s != "" && s != scope {
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
			logJSON(map[string]any{
				"component": "gateway",
				"event":     "connection_dropped",
				"scope":     scope,
				"error":     err.Error(),
			})
			_ = c.Close()
			delete(h.conns, c)
		}
	}
	return nil
}

// Close drops every connection and rejects further broadcasts.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.conns {
		_ = c.Close()
	}
	h.conns = make(map[wsConn]string)
}

func logJSON(fields map[string]any) {
	b, err := json.Marshal(fields)
	if err != nil {
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
