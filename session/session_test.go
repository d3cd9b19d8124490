package session

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
)

type recordingSink struct {
	delivered []domain.Message
}

func (s *recordingSink) Deliver(msg domain.Message) error {
	s.delivered = append(s.delivered, msg)
	return nil
}

func newTestStack(t *testing.T) (*runtime.Registry, services.IRoomService) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repositories.NewMessageStore(db, slog.Default())
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(registry, slog.Default())
	return registry, services.NewRoomService(store, broadcaster, slog.Default(), 0)
}

func TestSession_Join_Blank_Room_Is_Terminal(t *testing.T) {
	req := require.New(t)
	registry, rooms := newTestStack(t)
	sess := New(registry, rooms, slog.Default())

	err := sess.Join("   ", &recordingSink{})
	req.Error(err)
	req.Equal(StateClosed, sess.State())

	// A rejected session never entered the registry
	req.Nil(registry.SubscribersOf(""))
}

func TestSession_Join_Then_No_Rejoin(t *testing.T) {
	req := require.New(t)
	registry, rooms := newTestStack(t)
	sess := New(registry, rooms, slog.Default())

	req.NoError(sess.Join("general", &recordingSink{}))
	req.Equal(StateSubscribed, sess.State())
	req.Equal("general", sess.Room())

	req.Error(sess.Join("random", &recordingSink{}))
	req.Equal("general", sess.Room())
}

func TestSession_HandleRaw_Posts_Valid_Payload(t *testing.T) {
	req := require.New(t)
	registry, rooms := newTestStack(t)
	_, err := rooms.CreateRoom("general")
	req.NoError(err)

	sink := &recordingSink{}
	sess := New(registry, rooms, slog.Default())
	req.NoError(sess.Join("general", sink))

	sess.HandleRaw([]byte(`{"user":"Alice","text":"hello"}`))

	messages, err := rooms.ListMessages("general")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("Alice", messages[0].Author)
	req.Equal("hello", messages[0].Text)

	// The sender is a subscriber like any other and gets the broadcast back
	req.Len(sink.delivered, 1)
	req.Equal(messages[0], sink.delivered[0])
}

func TestSession_HandleRaw_Accepts_Double_Encoded_Payload(t *testing.T) {
	req := require.New(t)
	registry, rooms := newTestStack(t)
	_, err := rooms.CreateRoom("general")
	req.NoError(err)

	sess := New(registry, rooms, slog.Default())
	req.NoError(sess.Join("general", &recordingSink{}))

	// A JSON string that itself contains the record
	nested, err := json.Marshal(`{"user":"Bob","text":"hi"}`)
	req.NoError(err)
	sess.HandleRaw(nested)

	messages, err := rooms.ListMessages("general")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("Bob", messages[0].Author)
}

func TestSession_HandleRaw_Drops_Malformed_Payload(t *testing.T) {
	req := require.New(t)
	registry, rooms := newTestStack(t)
	_, err := rooms.CreateRoom("general")
	req.NoError(err)

	sess := New(registry, rooms, slog.Default())
	req.NoError(sess.Join("general", &recordingSink{}))

	sess.HandleRaw([]byte(`{{{not json`))
	sess.HandleRaw([]byte(`[1,2,3]`))

	messages, err := rooms.ListMessages("general")
	req.NoError(err)
	req.Empty(messages)
}

func TestSession_Handle_Drops_Blank_Text_Silently(t *testing.T) {
	req := require.New(t)
	registry, rooms := newTestStack(t)
	_, err := rooms.CreateRoom("general")
	req.NoError(err)

	sess := New(registry, rooms, slog.Default())
	req.NoError(sess.Join("general", &recordingSink{}))

	sess.Handle(Payload{User: "Alice", Text: "   "})

	messages, err := rooms.ListMessages("general")
	req.NoError(err)
	req.Empty(messages)
}

func TestSession_Handle_Uncreated_Room_Drops_And_Stays_Up(t *testing.T) {
	req := require.New(t)
	registry, rooms := newTestStack(t)

	sess := New(registry, rooms, slog.Default())
	req.NoError(sess.Join("never-created", &recordingSink{}))

	// The room was never created: the message is dropped, the session lives
	sess.Handle(Payload{User: "Alice", Text: "hello"})
	req.Equal(StateSubscribed, sess.State())
}

func TestSession_Close_Deregisters(t *testing.T) {
	req := require.New(t)
	registry, rooms := newTestStack(t)
	_, err := rooms.CreateRoom("general")
	req.NoError(err)

	sink := &recordingSink{}
	sess := New(registry, rooms, slog.Default())
	req.NoError(sess.Join("general", sink))
	sess.Close()
	req.Equal(StateClosed, sess.State())
	req.Empty(registry.SubscribersOf("general"))

	// Publishing to the former room neither errors nor reaches the handle
	_, err = rooms.PostMessage("general", "Bob", "anyone here?")
	req.NoError(err)
	req.Empty(sink.delivered)

	// Closing twice is fine
	sess.Close()
}
