// Package runtime tracks live subscriptions and fans persisted messages out
// to them. It contains no business rules and never touches the store.
package runtime

import (
	"sync"

	"chat-relay/domain"
)

// Subscriber receives the messages fanned out to its room.
//
// Deliver must not block: transports enqueue into a bounded buffer and report
// failure instead of stalling the caller. A returned error only affects the
// failing subscriber.
type Subscriber interface {
	Deliver(msg domain.Message) error
}

type Set map[string]struct{}

// Registry tracks which connection is listening to which room. A connection
// holds at most one subscription at a time.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]Subscriber // connection id -> sink
	current     map[string]string     // connection id -> subscribed room
	roomMembers map[string]Set        // room -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]Subscriber),
		current:     make(map[string]string),
		roomMembers: make(map[string]Set),
	}
}

// Join registers a connection's sink under room, replacing any prior
// subscription the connection held. Joining the same room twice is a no-op.
func (r *Registry) Join(connID, room string, sink Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.current[connID]; ok {
		r.removeMember(prev, connID)
	}

	r.sessions[connID] = sink
	r.current[connID] = room

	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(Set)
	}
	r.roomMembers[room][connID] = struct{}{}
}

// Leave removes the connection's subscription. No-op when the connection was
// never registered.
func (r *Registry) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, connID)

	room, ok := r.current[connID]
	if !ok {
		return
	}
	delete(r.current, connID)
	r.removeMember(room, connID)
}

// removeMember must be called with r.mu held. Empty member sets are dropped
// so the map does not grow with every room name ever joined.
func (r *Registry) removeMember(room, connID string) {
	members, ok := r.roomMembers[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.roomMembers, room)
	}
}

// SubscribersOf returns a snapshot of the sinks currently subscribed to room.
// Returns nil when the room has no members.
func (r *Registry) SubscribersOf(room string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	var sinks []Subscriber
	for connID := range members {
		if sink, exists := r.sessions[connID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}
