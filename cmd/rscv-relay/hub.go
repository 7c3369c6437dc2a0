package main

import (
	"context"
	"log/slog"
	"sync"

	"nhooyr.io/websocket"
)

// hub fans out clipboard_update frames to every connected client except the
// one that sent them — a transport-agnostic broadcast registry in the same
// register/unregister/publish-to-all-but-origin shape as a typical relay hub,
// specialised here to this domain's single clipboard and wrapped wire shape.
type hub struct {
	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func newHub() *hub {
	return &hub{clients: make(map[string]*websocket.Conn)}
}

func (h *hub) register(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = conn
}

func (h *hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// broadcast sends body to every registered client except originID.
func (h *hub) broadcast(ctx context.Context, originID string, body []byte) {
	h.mu.Lock()
	targets := make(map[string]*websocket.Conn, len(h.clients))
	for id, c := range h.clients {
		if id == originID {
			continue
		}
		targets[id] = c
	}
	h.mu.Unlock()

	for id, c := range targets {
		if err := c.Write(ctx, websocket.MessageText, body); err != nil {
			slog.Warn("relay broadcast write failed", "client", id, "err", err)
		}
	}
}
