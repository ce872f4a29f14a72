package runtime

import (
	"context"
	"testing"

	"dispatch-chat/domain"
	"dispatch-chat/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Room_One_Subscriber(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscriptionID := uuid.NewString()
	roomID := domain.RoomID("5_42")
	sink := Sink{}

	// Given no subscription is active
	// And no room entry exists
	req.Empty(registry.Sessions)
	req.Empty(registry.RoomMembers)

	// When a subscriber attaches to a room
	registry.Subscribe(subscriptionID, roomID, sink)

	// Then
	req.Len(registry.Sessions, 1)
	req.Equal(sink, registry.Sessions[subscriptionID])

	req.Len(registry.RoomMembers, 1)
	req.Contains(registry.RoomMembers[roomID], subscriptionID)

	req.Len(registry.GetSinksForRoom(roomID), 1)
	req.Contains(registry.GetSinksForRoom(roomID), sink)
}

func TestRegistry_Subscribe_One_Room_Multiple_Subscribers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscriptionID1 := uuid.NewString()
	subscriptionID2 := uuid.NewString()
	roomID := domain.RoomID("5_42")
	sink1 := Sink{}
	sink2 := Sink{}

	// When subscribers attach to a room
	registry.Subscribe(subscriptionID1, roomID, sink1)
	registry.Subscribe(subscriptionID2, roomID, sink2)

	// Then
	req.Len(registry.Sessions, 2)
	req.Len(registry.RoomMembers[roomID], 2)

	req.Len(registry.GetSinksForRoom(roomID), 2)
	req.Contains(registry.GetSinksForRoom(roomID), sink1)
}

func TestRegistry_Unsubscribe_One_Room_One_Subscriber(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscriptionID := uuid.NewString()
	roomID := domain.RoomID("5_42")
	sink := Sink{}

	// Given a subscriber attached to a room
	registry.Subscribe(subscriptionID, roomID, sink)

	// When the subscription is released
	registry.Unsubscribe(subscriptionID, roomID)

	// Then no subscription is left
	// And the room entry is gone
	req.Empty(registry.Sessions)
	req.Empty(registry.RoomMembers)
	req.Nil(registry.GetSinksForRoom(roomID))
}

func TestRegistry_Unsubscribe_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscriptionID := uuid.NewString()
	roomID := domain.RoomID("5_42")

	registry.Subscribe(subscriptionID, roomID, Sink{})
	registry.Unsubscribe(subscriptionID, roomID)
	registry.Unsubscribe(subscriptionID, roomID)

	req.Empty(registry.Sessions)
	req.Empty(registry.RoomMembers)
}

func TestRegistry_Unsubscribe_One_Room_Multiple_Subscribers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscriptionID1 := uuid.NewString()
	subscriptionID2 := uuid.NewString()
	roomID := domain.RoomID("5_42")
	sink1 := Sink{}
	sink2 := Sink{}

	registry.Subscribe(subscriptionID1, roomID, sink1)
	registry.Subscribe(subscriptionID2, roomID, sink2)

	// When one subscriber leaves
	registry.Unsubscribe(subscriptionID1, roomID)

	// Then only the other remains
	req.Len(registry.Sessions, 1)
	req.Len(registry.RoomMembers[roomID], 1)

	req.Len(registry.GetSinksForRoom(roomID), 1)
	req.Contains(registry.GetSinksForRoom(roomID), sink2)
}
