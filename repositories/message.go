//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"dispatch-chat/domain"
	"dispatch-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Append(txn *badger.Txn, message DiskMessage) (DiskMessage, error)
	Store(message DiskMessage) (DiskMessage, error)
	List(roomID domain.RoomID, limit *int, cursor *string) ([]DiskMessage, *string, error)
	MarkSeen(roomID domain.RoomID) error
	HasUnseen(roomID domain.RoomID) (bool, error)
}

// MessageRepository persists the per-room append-only message log in BadgerDB.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{seq_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Preserve append order on timestamp collisions via a store-assigned
//     monotonic sequence, padded to 12 digits.
type MessageRepository struct {
	db      *badger.DB
	seq     *badger.Sequence
	log     *slog.Logger
	skipped *atomic.Uint64
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:msg"), 128)
	if err != nil {
		return MessageRepository{}, fmt.Errorf("message sequence: %w", err)
	}
	return MessageRepository{db: db, seq: seq, log: log, skipped: &atomic.Uint64{}}, nil
}

// Close releases the leased sequence range back to Badger.
func (m MessageRepository) Close() error {
	return m.seq.Release()
}

// DiskMessage is the repository-level representation of a stored message.
// Timestamps are normalized to millisecond precision on write.
type DiskMessage struct {
	ID       uuid.UUID
	Room     domain.RoomID
	DriverID string
	Body     string
	Seen     bool
	At       time.Time
	Seq      uint64
}

// messageRecord is the persisted value under messages/{roomId}.
type messageRecord struct {
	ID        string `json:"id"`
	DriverID  string `json:"driverId"`
	Message   string `json:"message"`
	Seen      bool   `json:"seen"`
	Timestamp int64  `json:"timestamp"`
}

// Append assigns the store id and sequence, then writes the message inside
// the caller's transaction so the room directory projection can be updated
// atomically alongside it. Returns the stored record.
func (m MessageRepository) Append(txn *badger.Txn, message DiskMessage) (DiskMessage, error) {
	// Blank includes whitespace-only; " " is not a message.
	if strings.TrimSpace(message.Body) == "" {
		return DiskMessage{}, errors.ErrEmptyBody
	}
	next, err := m.seq.Next()
	if err != nil {
		return DiskMessage{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	message.ID = uuid.New()
	message.Seq = next
	if message.At.IsZero() {
		message.At = time.Now().UTC()
	}
	message.At = message.At.Truncate(time.Millisecond)

	bytes, err := json.Marshal(fromDiskMessage(message))
	if err != nil {
		return DiskMessage{}, err
	}
	if err = txn.Set(messageKey(message), bytes); err != nil {
		return DiskMessage{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return message, nil
}

// Store is the single-write convenience around Append.
func (m MessageRepository) Store(message DiskMessage) (DiskMessage, error) {
	var stored DiskMessage
	err := m.db.Update(func(txn *badger.Txn) error {
		var err error
		stored, err = m.Append(txn, message)
		return err
	})
	return stored, err
}

// List retrieves up to limit of the most recent messages for a room, in
// ascending chronological order. A nil limit returns the full log. The
// returned cursor addresses the page of older history; passing it back
// resumes the scan just before the oldest returned message. A nil cursor
// means the listing reached the oldest message.
// Rooms with no messages produce an empty sequence, not an error.
func (m MessageRepository) List(roomID domain.RoomID, limit *int, cursor *string) ([]DiskMessage, *string, error) {
	var raw [][]byte
	var lastKey string
	var more bool
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit != nil && len(raw) == *limit {
				// The unconsumed item is older history for the next page.
				more = true
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	messages := make([]DiskMessage, 0, len(raw))
	for _, value := range raw {
		message, err := m.decode(roomID, value)
		if err != nil {
			continue
		}
		messages = append(messages, message)
	}
	// The reverse scan yields newest first; readers always see ascending order.
	if !more {
		return lo.Reverse(messages), nil, nil
	}
	return lo.Reverse(messages), &lastKey, nil
}

// MarkSeen flips every unseen message of a room to seen. Idempotent: an
// already-seen room, or a room with no such key, is a no-op success.
func (m MessageRepository) MarkSeen(roomID domain.RoomID) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			var record messageRecord
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &record)
			})
			if err != nil {
				m.skip(string(key), err)
				continue
			}
			if record.Seen {
				continue
			}
			record.Seen = true
			bytes, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err = txn.Set(key, bytes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return nil
}

// HasUnseen reports whether a room still holds driver-directed messages the
// dispatcher has not read. Seen flags only ever transition in append order,
// so checking the newest message is sufficient.
func (m MessageRepository) HasUnseen(roomID domain.RoomID) (bool, error) {
	one := 1
	messages, _, err := m.List(roomID, &one, nil)
	if err != nil {
		return false, err
	}
	if len(messages) == 0 {
		return false, nil
	}
	return !messages[0].Seen, nil
}

// SkippedRecords counts values that could not be decoded and were left out
// of listings instead of failing them.
func (m MessageRepository) SkippedRecords() uint64 {
	return m.skipped.Load()
}

func (m MessageRepository) decode(roomID domain.RoomID, value []byte) (DiskMessage, error) {
	var record messageRecord
	if err := json.Unmarshal(value, &record); err != nil {
		m.skip(string(roomID), err)
		return DiskMessage{}, err
	}
	message, err := toDiskMessage(roomID, record)
	if err != nil {
		m.skip(string(roomID), err)
		return DiskMessage{}, err
	}
	return message, nil
}

func (m MessageRepository) skip(where string, err error) {
	m.skipped.Add(1)
	m.log.Warn("Skipping malformed message record", "at", where, "error", err)
}

func messageKey(message DiskMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%012d",
		message.Room,
		message.At.UnixMilli(),
		message.Seq,
	))
}

func fromDiskMessage(message DiskMessage) messageRecord {
	return messageRecord{
		ID:        message.ID.String(),
		DriverID:  message.DriverID,
		Message:   message.Body,
		Seen:      message.Seen,
		Timestamp: message.At.UnixMilli(),
	}
}

func toDiskMessage(roomID domain.RoomID, record messageRecord) (DiskMessage, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return DiskMessage{}, err
	}
	if record.Message == "" {
		return DiskMessage{}, errors.ErrEmptyBody
	}
	return DiskMessage{
		ID:       parsedID,
		Room:     roomID,
		DriverID: record.DriverID,
		Body:     record.Message,
		Seen:     record.Seen,
		At:       time.UnixMilli(record.Timestamp).UTC(),
	}, nil
}
