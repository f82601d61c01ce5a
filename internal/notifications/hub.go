package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"murmur/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

// maxTotalConns caps the number of concurrent websocket clients per instance.
const maxTotalConns = 10000

// ErrConnectionLimit is returned by Register when the hub is full.
var ErrConnectionLimit = errors.New("server connection limit reached")

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// Hub tracks every connected websocket client of this instance.
type Hub struct {
	mu     sync.RWMutex
	conns  map[*Client]struct{}
	closed bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "feed hub" }

// Register adds a connection and returns its Client.
func (h *Hub) Register(conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.conns) >= maxTotalConns {
		return nil, ErrConnectionLimit
	}

	client := NewClient(h, conn)
	h.conns[client] = struct{}{}
	return client, nil
}

// UnregisterClient removes and retires the client. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[client]; ok {
		delete(h.conns, client)
		client.close()
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.TrySend(message)
	}
}

// StartWiring subscribes the hub to the cross-instance event channel.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.Subscribe(ctx, h.BroadcastAll)
}

// RetryWiring keeps trying to subscribe in the background until it succeeds
// or ctx ends.
func (h *Hub) RetryWiring(ctx context.Context, n *Notifier, interval time.Duration) {
	go n.SubscribeWithRetry(ctx, h.BroadcastAll, interval)
}

// Shutdown refuses new clients and retires every current one. Each write
// pump sends its own close frame, so no connection is written to from two
// goroutines.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.conns {
		delete(h.conns, client)
		client.close()
	}
	middleware.Logger.Debug("hub shut down", slog.String("hub", h.Name()))
	return nil
}
