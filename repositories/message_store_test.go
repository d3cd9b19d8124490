package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	errs "chat-relay/errors"
)

func openTestDB(t *testing.T, dir string) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	return db
}

func Test_Append_Then_List_Preserves_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	store := NewMessageStore(db, slog.Default())
	req.NoError(store.CreateRoom("general"))

	posted := []domain.Message{
		domain.NewMessage("Alice", "hello"),
		domain.NewMessage("Bob", "hi Alice"),
		domain.NewMessage("Clara", "morning"),
	}
	for _, msg := range posted {
		req.NoError(store.Append("general", msg))
	}

	fetched, err := store.ListMessages("general")
	req.NoError(err)
	req.Len(fetched, len(posted))
	for i, msg := range fetched {
		req.Equal(posted[i].ID, msg.ID)
		req.Equal(posted[i].Author, msg.Author)
		req.Equal(posted[i].Text, msg.Text)
		req.Equal(time.UTC, msg.Timestamp.Location())
	}
}

func Test_Append_Unknown_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	store := NewMessageStore(db, slog.Default())

	err := store.Append("nowhere", domain.NewMessage("Alice", "hello"))
	req.ErrorIs(err, errs.ErrRoomNotFound)
}

func Test_CreateRoom_Twice(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	store := NewMessageStore(db, slog.Default())

	// Given a room exists
	req.NoError(store.CreateRoom("general"))

	// When it is created again
	err := store.CreateRoom("general")

	// Then the second call fails and the room stays empty
	req.ErrorIs(err, errs.ErrRoomExists)
	messages, err := store.ListMessages("general")
	req.NoError(err)
	req.Empty(messages)
}

func Test_ListMessages_Unknown_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	store := NewMessageStore(db, slog.Default())

	_, err := store.ListMessages("nowhere")
	req.ErrorIs(err, errs.ErrRoomNotFound)
}

func Test_ListRoomNames_Snapshot(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	store := NewMessageStore(db, slog.Default())
	req.NoError(store.CreateRoom("zulu"))
	req.NoError(store.CreateRoom("alpha"))
	req.NoError(store.CreateRoom("mike"))

	names, err := store.ListRoomNames()
	req.NoError(err)
	req.Equal([]string{"alpha", "mike", "zulu"}, names)
}

func Test_Concurrent_Appends_Lose_Nothing(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	store := NewMessageStore(db, slog.Default())
	req.NoError(store.CreateRoom("general"))

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				msg := domain.NewMessage(fmt.Sprintf("writer-%d", w), fmt.Sprintf("msg %d/%d", w, i))
				require.NoError(t, store.Append("general", msg))
			}
		}(w)
	}
	wg.Wait()

	messages, err := store.ListMessages("general")
	req.NoError(err)
	req.Len(messages, writers*perWriter)

	// Every message present exactly once
	seen := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		_, dup := seen[msg.Text]
		req.False(dup, "duplicate message %q", msg.Text)
		seen[msg.Text] = struct{}{}
	}
}

func Test_Reload_Preserves_Content_And_Order(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	db := openTestDB(t, dir)
	store := NewMessageStore(db, slog.Default())
	req.NoError(store.CreateRoom("general"))
	req.NoError(store.Append("general", domain.NewMessage("Alice", "first")))
	req.NoError(store.Append("general", domain.NewMessage("Bob", "second")))
	before, err := store.ListMessages("general")
	req.NoError(err)
	req.NoError(db.Close())

	// When a fresh store reloads from the same durable medium
	db = openTestDB(t, dir)
	defer db.Close()
	reloaded := NewMessageStore(db, slog.Default())

	after, err := reloaded.ListMessages("general")
	req.NoError(err)
	req.Equal(before, after)

	// And appends continue at the end of the recovered sequence
	req.NoError(reloaded.Append("general", domain.NewMessage("Clara", "third")))
	after, err = reloaded.ListMessages("general")
	req.NoError(err)
	req.Len(after, 3)
	req.Equal("third", after[2].Text)
}
