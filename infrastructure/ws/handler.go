package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/session"
)

// Handler upgrades HTTP requests on the live endpoint and hands the
// connection to a fresh session. The room is taken from the "room" query
// parameter; joins with a blank room are rejected before any pump starts.
type Handler struct {
	registry   *runtime.Registry
	rooms      services.IRoomService
	bufferSize int
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

func NewHandler(registry *runtime.Registry, rooms services.IRoomService,
	bufferSize int, log *slog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		rooms:      rooms,
		bufferSize: bufferSize,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin allow-listing is a deployment concern handled in
			// front of this process.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	sess := session.New(h.registry, h.rooms, h.log)
	client := newClient(conn, sess, h.bufferSize, h.log)

	if err := sess.Join(room, client); err != nil {
		h.log.Warn("Rejecting connection", "session", sess.ID(), "error", err)
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "room is required"),
			deadline)
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
