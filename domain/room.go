// Package domain contains core concepts of the conversation system.
// A room is the channel between one dispatcher and one driver; its key
// fixes the dispatcher-then-driver order because only dispatchers
// initiate conversations, so every pair maps to exactly one room.
package domain

import (
	"dispatch-chat/errors"
	"strings"
	"time"
)

const roomKeySeparator = "_"

// RoomID is the two-segment room key "{dispatcherId}_{driverId}".
type RoomID string

// NewRoomID builds the deterministic key for a dispatcher/driver pair.
func NewRoomID(dispatcherID, driverID string) (RoomID, error) {
	if !validSegment(dispatcherID) || !validSegment(driverID) {
		return "", errors.ErrInvalidRoomID
	}
	return RoomID(dispatcherID + roomKeySeparator + driverID), nil
}

// ParseRoomID validates a raw key before any store access.
// Exactly two non-empty underscore-separated segments; any other shape is rejected.
func ParseRoomID(raw string) (RoomID, error) {
	parts := strings.Split(raw, roomKeySeparator)
	if len(parts) != 2 || !validSegment(parts[0]) || !validSegment(parts[1]) {
		return "", errors.ErrInvalidRoomID
	}
	return RoomID(raw), nil
}

func validSegment(s string) bool {
	return s != "" && !strings.Contains(s, roomKeySeparator)
}

func (id RoomID) DispatcherID() string {
	return strings.SplitN(string(id), roomKeySeparator, 2)[0]
}

func (id RoomID) DriverID() string {
	return strings.SplitN(string(id), roomKeySeparator, 2)[1]
}

// Room is the denormalized directory entry used to render conversation
// lists without scanning full message logs. LastMessage and LastMessageAt
// are nil until the first append.
type Room struct {
	ID            RoomID
	DispatcherID  string
	LastMessage   *string
	LastMessageAt *time.Time
}

// NewRoom materializes an empty room entry, before any message exists.
func NewRoom(id RoomID) Room {
	return Room{ID: id, DispatcherID: id.DispatcherID()}
}
