// Package notify broadcasts treasury update events over websockets.
// Events are invalidation hints only; clients re-read state over HTTP.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub tracks connected websocket clients and fans broadcast payloads out
// to them. Delivery is fire-and-forget: a slow client's full buffer drops
// the message for that client only, it never blocks the generation path.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
}

// NewHub creates a Hub. Run must be started before Publish is called.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

// Run owns the client set. All membership changes and broadcasts go
// through this single goroutine, so no locking is needed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.closeSend()
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			metrics.NotifierClients.Set(float64(len(h.clients)))
			slog.Debug("Websocket client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.closeSend()
				metrics.NotifierClients.Set(float64(len(h.clients)))
				slog.Debug("Websocket client disconnected", "clients", len(h.clients))
			}

		case payload := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// Slow consumer, drop the event for this client
					slog.Warn("Client buffer full, dropping update event")
				}
			}
		}
	}
}

// Publish broadcasts an update event to every connected client. It never
// blocks and never returns an error: a full broadcast queue drops the
// event, callers on the generation path must not stall on notification.
func (h *Hub) Publish(event domain.UpdateEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode update event", "error", err)
		return
	}

	select {
	case h.broadcast <- payload:
		metrics.NotifierEventsTotal.Inc()
	default:
		slog.Warn("Broadcast queue full, dropping update event")
	}
}

// disconnect hands a client back to the hub. After Run has exited the hub
// no longer drains unregister, so a pump finishing during shutdown must
// not block here.
func (h *Hub) disconnect(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.closeSend()
	}
}

// ServeWs upgrades an HTTP request to a websocket connection and attaches
// it to the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket connection", "error", err)
		return
	}

	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
