// Package tracesrv serves a live view of pass-trace and dump events over a
// WebSocket connection, for the CLI's --trace flag (spec.md §6). Grounded
// on the teacher's pages.go ServeHTTP websocket loop: an http.Handler that
// upgrades eligible requests and pushes one JSON message per event,
// bailing out cleanly when the connection closes.
package tracesrv

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one trace/dump record pushed to connected viewers.
type Event struct {
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
	XML     string `json:"xml,omitempty"`
}

// Hub fans Events out to every connected WebSocket client. Build one with
// NewHub; the zero value has no client map and no logger.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

// NewHub builds a Hub. logger may be nil.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[*websocket.Conn]chan Event)}
}

// Broadcast delivers ev to every currently connected client. For a slow
// client whose buffer is full, ev is dropped rather than blocking the
// producer (the post-processing driver); the client stays connected.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("tracesrv: dropping event for slow client", slog.Any("remote", conn.RemoteAddr()))
		}
	}
}

// Dump adapts Hub.Broadcast to the sink shape postprocess.NewEtreeDumper
// takes.
func (h *Hub) Dump(stage, xml string) {
	h.Broadcast(Event{Stage: stage, XML: xml})
}

// ServeHTTP upgrades the request to a WebSocket and streams Events until
// the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("tracesrv: upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ch := make(chan Event, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("tracesrv: read error", slog.Any("error", err))
				}
				return
			}
		}
	}()

	for {
		select {
		case ev := <-ch:
			w, err := conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if err := json.NewEncoder(w).Encode(ev); err != nil {
				w.Close()
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
