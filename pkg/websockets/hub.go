package websockets

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(message Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(message)
}

// Hub publishes to the WebSocket connections held by this process.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *slog.Logger
}

// Make sure we conform to the interface
var _ Publisher = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[string]*client), logger: logger}
}

// Register adds a connection under connectionID.
func (h *Hub) Register(connectionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connectionID] = &client{conn: conn}
}

// Unregister forgets a connection. It does not close it.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connectionID)
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish writes message to every registered connection. Connections that fail
// the write are dropped; the reader loop of their handler closes them.
func (h *Hub) Publish(ctx context.Context, message Message) error {
	h.mu.RLock()
	targets := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		targets[id] = c
	}
	h.mu.RUnlock()

	for id, c := range targets {
		if err := c.write(message); err != nil {
			h.logger.WarnContext(ctx, "dropping websocket connection after failed write", "connectionId", id, "error", err)
			h.Unregister(id)
		}
	}
	return nil
}
