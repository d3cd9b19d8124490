package services

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/runtime"
)

type IRoomService interface {
	ListRooms() ([]string, error)
	CreateRoom(name string) (domain.Room, error)
	ListMessages(name string) ([]domain.Message, error)
	PostMessage(name, author, text string) (domain.Message, error)
}

// RoomService is the single entry point for posting messages: both the REST
// handlers and the live sessions funnel through PostMessage, so validation,
// persistence, and broadcast happen in exactly one place. REST callers
// surface the returned error; sessions log and drop it.
type RoomService struct {
	store       repositories.IMessageStore
	broadcaster *runtime.Broadcaster
	log         *slog.Logger
	maxTextLen  int

	// postMu keeps Append and Publish as one unit, so per-room delivery
	// order always matches append order.
	postMu sync.Mutex
}

func NewRoomService(store repositories.IMessageStore, broadcaster *runtime.Broadcaster,
	log *slog.Logger, maxTextLen int) *RoomService {
	return &RoomService{
		store:       store,
		broadcaster: broadcaster,
		log:         log,
		maxTextLen:  maxTextLen,
	}
}

func (s *RoomService) ListRooms() ([]string, error) {
	return s.store.ListRoomNames()
}

// CreateRoom creates an empty room with a trimmed, non-blank name.
func (s *RoomService) CreateRoom(name string) (domain.Room, error) {
	name, err := domain.NormalizeRoomName(name)
	if err != nil {
		return domain.Room{}, err
	}
	if err := s.store.CreateRoom(name); err != nil {
		return domain.Room{}, err
	}
	s.log.Info("Room created", "room", name)
	return domain.Room{Name: name}, nil
}

func (s *RoomService) ListMessages(name string) ([]domain.Message, error) {
	return s.store.ListMessages(strings.TrimSpace(name))
}

// PostMessage validates and normalizes one inbound message, appends it to the
// room's durable log, and only then fans it out to live subscribers. A
// message that failed to persist is never broadcast.
func (s *RoomService) PostMessage(name, author, text string) (domain.Message, error) {
	name = strings.TrimSpace(name)

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, fmt.Errorf("%w: message text is required", errs.ErrValidation)
	}
	if s.maxTextLen > 0 && len(text) > s.maxTextLen {
		return domain.Message{}, fmt.Errorf("%w: message text exceeds %d bytes", errs.ErrValidation, s.maxTextLen)
	}

	msg := domain.NewMessage(author, text)

	s.postMu.Lock()
	defer s.postMu.Unlock()

	if err := s.store.Append(name, msg); err != nil {
		return domain.Message{}, err
	}
	s.broadcaster.Publish(name, msg)
	return msg, nil
}
