package runtime

import (
	"sync"

	"dispatch-chat/contract"
	"dispatch-chat/domain"
)

type Set map[string]struct{}

// Registry indexes live subscriptions: which sink belongs to which
// subscription, and which subscriptions are attached to which room.
type Registry struct {
	mu          sync.RWMutex
	Sessions    map[string]contract.EventSink // subscription id -> sink
	RoomMembers map[domain.RoomID]Set         // room -> subscription ids
}

func NewRegistry() *Registry {
	return &Registry{
		Sessions:    make(map[string]contract.EventSink),
		RoomMembers: make(map[domain.RoomID]Set),
	}
}

// GetSinksForRoom resolves the active sinks of a room in two steps:
// room -> subscription ids, then id -> sink. Returns nil when the room has
// no live subscribers.
func (r *Registry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.RoomMembers[roomID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for subscriptionID := range members {
		if sink, exists := r.Sessions[subscriptionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a subscription's sink and attaches it to a room.
// The room entry is initialized on the fly on first use.
func (r *Registry) Subscribe(subscriptionID string, roomID domain.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sessions[subscriptionID] = sink

	if _, ok := r.RoomMembers[roomID]; !ok {
		r.RoomMembers[roomID] = make(Set)
	}
	r.RoomMembers[roomID][subscriptionID] = struct{}{}
}

// Unsubscribe detaches a subscription. Idempotent: unknown ids are a no-op.
// Empty room entries are removed so the map does not grow without bound.
func (r *Registry) Unsubscribe(subscriptionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Sessions, subscriptionID)

	if members, ok := r.RoomMembers[roomID]; ok {
		delete(members, subscriptionID)

		if len(members) == 0 {
			delete(r.RoomMembers, roomID)
		}
	}
}
