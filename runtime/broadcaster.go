package runtime

import (
	"log/slog"

	"chat-relay/domain"
)

// Broadcaster delivers one message to every current subscriber of a room.
//
// Delivery is best-effort with no retries and no persistence: durability is
// the store's job and must happen before Publish is invoked. Isolation
// between subscribers comes from the Subscriber contract (Deliver never
// blocks), so one slow or dead sink cannot hold up the others.
type Broadcaster struct {
	registry *Registry
	log      *slog.Logger
}

func NewBroadcaster(registry *Registry, log *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log}
}

// Publish fans msg out to the room's current subscribers, in registry
// snapshot order. Failed deliveries are logged and skipped.
func (b *Broadcaster) Publish(room string, msg domain.Message) {
	for _, sink := range b.registry.SubscribersOf(room) {
		if err := sink.Deliver(msg); err != nil {
			b.log.Warn("Dropping delivery to subscriber", "room", room, "error", err)
		}
	}
}
