// Package hub fans out board change notifications to every connected
// websocket observer. Delivery is best-effort at emission time: observers
// that connect later resynchronize over HTTP instead of replaying history.
package hub

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a separate origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub keeps the set of connected observers and broadcasts every event to all
// of them. It implements board.EventSink.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan board.Event
	logger     *zap.Logger
}

// New creates a hub. Run must be started before events are published.
func New(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan board.Event, 256),
		logger:     logger,
	}
}

// Publish queues an event for fan-out. It never blocks the store: if the
// broadcast queue is full the event is dropped and observers converge on the
// next resync.
func (h *Hub) Publish(evt board.Event) {
	select {
	case h.broadcast <- evt:
	default:
		h.logger.Warn("Broadcast queue full, dropping event", zap.String("event", string(evt.Type)))
	}
}

// Run processes registrations and broadcasts until the channel loop is
// abandoned at process shutdown.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.logger.Info("Observer connected", zap.String("observer", c.id), zap.Int("total", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Info("Observer disconnected", zap.String("observer", c.id), zap.Int("total", len(h.clients)))
			}
		case evt := <-h.broadcast:
			raw, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("Failed to encode event", zap.Error(err))
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- raw:
				default:
					// Slow consumer; drop it rather than stall the board.
					delete(h.clients, c)
					close(c.send)
					h.logger.Warn("Observer too slow, dropping", zap.String("observer", c.id))
				}
			}
		}
	}
}
