// Package httpapi exposes the request/response facade over HTTP. Handlers
// translate service results to stable status codes: validation failures 400,
// unknown rooms 404, duplicate rooms 409, persistence failures 500.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/services"
)

type Handler struct {
	rooms    services.IRoomService
	log      *slog.Logger
	validate *validator.Validate
}

func NewHandler(rooms services.IRoomService, log *slog.Logger) *Handler {
	return &Handler{rooms: rooms, log: log, validate: validator.New()}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/chat", h.listRooms)
	mux.HandleFunc("POST /api/v1/chat", h.createRoom)
	mux.HandleFunc("GET /api/v1/chat/{name}/messages", h.listMessages)
	mux.HandleFunc("POST /api/v1/chat/{name}/messages", h.postMessage)
}

type createRoomRequest struct {
	Name string `json:"name" validate:"required"`
}

type postMessageRequest struct {
	User string `json:"user"`
	Text string `json:"text" validate:"required"`
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	names, err := h.rooms.ListRooms()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, lo.Ternary(names == nil, []string{}, names))
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	room, err := h.rooms.CreateRoom(req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, map[string]string{
		"message": "Room created",
		"name":    room.Name,
	})
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.rooms.ListMessages(r.PathValue("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, lo.Ternary(messages == nil, []domain.Message{}, messages))
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	msg, err := h.rooms.PostMessage(r.PathValue("name"), req.User, req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, msg)
}

// decode parses the request body and runs struct validation. Both failure
// modes surface as validation errors so the caller gets a 400.
func (h *Handler) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", errs.ErrValidation)
	}
	if err := h.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Writing response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	switch {
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrRoomExists):
		status = http.StatusConflict
	default:
		h.log.Error("Request failed", "error", err)
		message = "internal error"
	}
	h.respond(w, status, map[string]string{"error": message})
}
