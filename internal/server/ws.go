package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handsignal/internal/scheduler"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// OverlaySource is the polled view of detector state. *overlay.Bridge
// implements it.
type OverlaySource interface {
	Latest() scheduler.State
	Subscribe() (<-chan scheduler.State, func())
}

// OverlayHandler streams overlay snapshots to WebSocket clients, one JSON
// text message per polled snapshot. A slow client skips to the newest one.
type OverlayHandler struct {
	source OverlaySource
	done   <-chan struct{}
	logger *slog.Logger
}

// NewOverlayHandler creates an OverlayHandler. Open connections are closed
// when done is closed.
func NewOverlayHandler(src OverlaySource, done <-chan struct{}, logger *slog.Logger) *OverlayHandler {
	return &OverlayHandler{source: src, done: done, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *OverlayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snapshots, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	// The read loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, h.source.Latest()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-h.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case st, ok := <-snapshots:
			if !ok {
				return
			}
			if err := h.write(conn, st); err != nil {
				h.logger.Debug("overlay client write failed", "error", err)
				return
			}
		}
	}
}

func (h *OverlayHandler) write(conn *websocket.Conn, st scheduler.State) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(st)
}
