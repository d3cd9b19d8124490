package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	errs "chat-relay/errors"
)

type IMessageStore interface {
	Append(room string, msg domain.Message) error
	CreateRoom(name string) error
	ListRoomNames() ([]string, error)
	ListMessages(room string) ([]domain.Message, error)
}

// MessageStore is the durable room -> messages log backed by BadgerDB.
//
// All mutating operations are serialized through one mutex so concurrent
// appends from the live channel and the REST path can never lose updates.
// Reads go straight to badger snapshots and do not take the mutex.
type MessageStore struct {
	db  *badger.DB
	log *slog.Logger

	mu  sync.Mutex
	seq map[string]uint64 // next sequence number per room, recovered lazily
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, log: log, seq: make(map[string]uint64)}
}

// Keys use NUL as separator because room names may contain any other byte.
//
//	room\x00{name}           marks an existing room
//	msg\x00{name}\x00{seq}   holds one message, seq zero padded to 19 digits
//
// The padding keeps badger's lexicographical key order equal to append order,
// so a forward prefix scan yields each room's messages in insertion order.
const (
	keySep     = "\x00"
	roomPrefix = "room" + keySep
	msgPrefix  = "msg" + keySep
)

func roomKey(name string) []byte {
	return []byte(roomPrefix + name)
}

func messagePrefix(room string) []byte {
	return []byte(msgPrefix + room + keySep)
}

func messageKey(room string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s%s%019d", msgPrefix, room, keySep, seq))
}

// Append durably adds msg at the end of the room's sequence. It fails with
// ErrRoomNotFound when the room was never created and ErrPersistence when the
// underlying write cannot complete; a failed append leaves the store as it
// was before the call.
func (s *MessageStore) Append(room string, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.seq[room]
	if !ok {
		next, err = s.loadSeq(room)
		if err != nil {
			return err
		}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(room, next), payload)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}

	// Only advance after the commit succeeded so a failed write cannot
	// leave a hole in the sequence.
	s.seq[room] = next + 1
	return nil
}

// loadSeq recovers the next sequence number for a room from its durable keys.
// Called under s.mu on the first append after the store was opened.
func (s *MessageStore) loadSeq(room string) (uint64, error) {
	var next uint64
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(room)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errs.ErrRoomNotFound
			}
			return err
		}

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := messagePrefix(room)
		// Seek past the highest possible sequence, then step back onto the
		// last message written for this room.
		it.Seek(append(append([]byte{}, prefix...), []byte("9999999999999999999")...))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		last, err := strconv.ParseUint(string(it.Item().Key()[len(prefix):]), 10, 64)
		if err != nil {
			return err
		}
		next = last + 1
		s.log.Debug("Recovered room sequence", "room", room, "next", next)
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrRoomNotFound) {
			return 0, fmt.Errorf("%w: %s", errs.ErrRoomNotFound, room)
		}
		return 0, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return next, nil
}

// CreateRoom creates an empty room. It fails with ErrRoomExists when the key
// is already present.
func (s *MessageStore) CreateRoom(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(name))
		if err == nil {
			return errs.ErrRoomExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(roomKey(name), nil)
	})
	if err != nil {
		if errors.Is(err, errs.ErrRoomExists) {
			return fmt.Errorf("%w: %s", errs.ErrRoomExists, name)
		}
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}

	s.seq[name] = 0
	return nil
}

// ListRoomNames returns a snapshot of the current room keys in
// lexicographical order.
func (s *MessageStore) ListRoomNames() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(roomPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return names, nil
}

// ListMessages returns the room's messages in append order. It fails with
// ErrRoomNotFound when the room is absent.
func (s *MessageStore) ListMessages(room string) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(room)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errs.ErrRoomNotFound
			}
			return err
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := messagePrefix(room)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrRoomNotFound) {
			return nil, fmt.Errorf("%w: %s", errs.ErrRoomNotFound, room)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return messages, nil
}
