package event

import (
	"dispatch-chat/domain"
)

// DomainEvent is anything the fanout can route to a room's subscribers.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessageAppended is emitted after a message has been durably stored and
// the room directory projection updated. Fanout delivery is asynchronous
// and never blocks the append path.
//
// Seq is the store's append-order sequence. Subscribers use it to fence
// the live tail against messages their history replay already covered.
type MessageAppended struct {
	Room    domain.RoomID
	Message domain.Message
	Seq     uint64
}

func (m MessageAppended) RoomID() domain.RoomID {
	return m.Room
}
