// Package session owns the per-connection lifecycle of the live channel:
// one join, any number of inbound messages, one close. The transport feeds
// it raw payloads and never sees an error back; misbehaving peers are logged
// and their input dropped.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	errs "chat-relay/errors"
	"chat-relay/runtime"
	"chat-relay/services"
)

type State int

const (
	StateUnsubscribed State = iota
	StateSubscribed
	StateClosed
)

// Payload is the inbound wire record of the live channel.
type Payload struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// Session serves exactly one room for its lifetime. There is no re-join
// path: a failed join or a disconnect is terminal.
type Session struct {
	id       string
	room     string
	state    State
	registry *runtime.Registry
	rooms    services.IRoomService
	log      *slog.Logger
}

func New(registry *runtime.Registry, rooms services.IRoomService, log *slog.Logger) *Session {
	return &Session{
		id:       uuid.NewString(),
		state:    StateUnsubscribed,
		registry: registry,
		rooms:    rooms,
		log:      log,
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Room() string { return s.room }
func (s *Session) State() State { return s.state }

// Join subscribes the session's sink to room. A blank room name rejects the
// session terminally, without ever entering the subscribed state.
func (s *Session) Join(room string, sink runtime.Subscriber) error {
	if s.state != StateUnsubscribed {
		return fmt.Errorf("%w: session already joined a room", errs.ErrValidation)
	}
	room = strings.TrimSpace(room)
	if room == "" {
		s.state = StateClosed
		return fmt.Errorf("%w: room name is required", errs.ErrValidation)
	}

	s.registry.Join(s.id, room, sink)
	s.room = room
	s.state = StateSubscribed
	s.log.Info("Session subscribed", "session", s.id, "room", room)
	return nil
}

// HandleRaw parses a serialized payload and hands it to Handle. Unparseable
// input is discarded with a log entry; the peer is never told.
func (s *Session) HandleRaw(data []byte) {
	p, err := decodePayload(data)
	if err != nil {
		s.log.Warn("Discarding live payload", "session", s.id, "error", err)
		return
	}
	s.Handle(p)
}

// Handle validates, persists, and broadcasts one inbound message through the
// shared post path. Fire-and-forget: failures are logged, the message is
// dropped, and the connection stays up.
func (s *Session) Handle(p Payload) {
	if s.state != StateSubscribed {
		s.log.Warn("Discarding message from unsubscribed session", "session", s.id)
		return
	}
	if _, err := s.rooms.PostMessage(s.room, p.User, p.Text); err != nil {
		s.log.Warn("Discarding message", "session", s.id, "room", s.room, "error", err)
	}
}

// Close deregisters the session so it stops receiving deliveries. Idempotent.
func (s *Session) Close() {
	if s.state == StateSubscribed {
		s.registry.Leave(s.id)
		s.log.Info("Session unsubscribed", "session", s.id, "room", s.room)
	}
	s.state = StateClosed
}

// decodePayload accepts both the structured record and its double-encoded
// form, a JSON string that itself contains the record. Some clients send the
// latter over the wire.
func decodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err == nil {
		return p, nil
	}
	var nested string
	if err := json.Unmarshal(data, &nested); err == nil {
		if err := json.Unmarshal([]byte(nested), &p); err == nil {
			return p, nil
		}
	}
	return Payload{}, fmt.Errorf("%w: %.64s", errs.ErrMalformedPayload, string(data))
}
