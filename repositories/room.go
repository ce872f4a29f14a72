//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"dispatch-chat/domain"
	"dispatch-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

type IRoomRepository interface {
	UpsertLastMessage(txn *badger.Txn, roomID domain.RoomID, message DiskMessage) error
	Ensure(roomID domain.RoomID) error
	Get(roomID domain.RoomID) (domain.Room, error)
	ListForDispatcher(dispatcherID string) ([]domain.Room, error)
}

// RoomRepository owns the denormalized room index under "chat:{room_id}".
// It is a projection of the message log: the record always mirrors the most
// recent message of its room and must be reproducible by replaying the log.
type RoomRepository struct {
	db      *badger.DB
	log     *slog.Logger
	skipped *atomic.Uint64
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log, skipped: &atomic.Uint64{}}
}

// roomRecord is the persisted value under chats/{roomId}.
// Timestamp 0 marks a room that has no messages yet.
type roomRecord struct {
	DispatcherID string `json:"dispatcherId"`
	LastMessage  string `json:"lastMessage"`
	Timestamp    int64  `json:"timestamp"`
}

// UpsertLastMessage refreshes the projection inside the transaction that
// appended the message, so a failed send leaves no partial state.
func (r RoomRepository) UpsertLastMessage(txn *badger.Txn, roomID domain.RoomID, message DiskMessage) error {
	record := roomRecord{
		DispatcherID: roomID.DispatcherID(),
		LastMessage:  message.Body,
		Timestamp:    message.At.UnixMilli(),
	}
	bytes, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err = txn.Set(roomKey(roomID), bytes); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return nil
}

// Ensure lazily materializes an empty room entry the first time a
// conversation is opened, before any message exists. Existing entries are
// left untouched.
func (r RoomRepository) Ensure(roomID domain.RoomID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		key := roomKey(roomID)
		if _, err := txn.Get(key); err == nil {
			return nil
		}
		bytes, err := json.Marshal(roomRecord{DispatcherID: roomID.DispatcherID()})
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return nil
}

func (r RoomRepository) Get(roomID domain.RoomID) (domain.Room, error) {
	var record roomRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(roomID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return toRoom(roomID, record), nil
}

// ListForDispatcher returns every room whose key's dispatcher segment equals
// dispatcherID, most recently active first, rooms with no messages last.
// The underscore in the scanned prefix guarantees dispatcher "5" never
// matches rooms of dispatcher "52". Malformed records are skipped, counted,
// and logged rather than failing the whole listing.
func (r RoomRepository) ListForDispatcher(dispatcherID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := "chat:" + dispatcherID + "_"
		prefix := []byte(prefixStr)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rawID := string(item.Key()[len("chat:"):])
			roomID, err := domain.ParseRoomID(rawID)
			if err != nil {
				r.skip(rawID, err)
				continue
			}
			var record roomRecord
			err = item.Value(func(value []byte) error {
				return json.Unmarshal(value, &record)
			})
			if err != nil {
				r.skip(rawID, err)
				continue
			}
			rooms = append(rooms, toRoom(roomID, record))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		left, right := rooms[i].LastMessageAt, rooms[j].LastMessageAt
		switch {
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return left.After(*right)
		}
	})
	return rooms, nil
}

// SkippedRecords counts room entries left out of listings as malformed.
func (r RoomRepository) SkippedRecords() uint64 {
	return r.skipped.Load()
}

func (r RoomRepository) skip(rawID string, err error) {
	r.skipped.Add(1)
	r.log.Warn("Skipping malformed room record", "room", rawID, "error", err)
}

func roomKey(roomID domain.RoomID) []byte {
	return []byte("chat:" + string(roomID))
}

func toRoom(roomID domain.RoomID, record roomRecord) domain.Room {
	room := domain.Room{ID: roomID, DispatcherID: record.DispatcherID}
	if record.Timestamp != 0 {
		at := time.UnixMilli(record.Timestamp).UTC()
		room.LastMessage = &record.LastMessage
		room.LastMessageAt = &at
	}
	return room
}
