//go:generate go run go.uber.org/mock/mockgen -source=conversation_service.go -destination=../mocks/mock_conversation_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dispatch-chat/directory"
	"dispatch-chat/domain"
	"dispatch-chat/errors"
	"dispatch-chat/repositories"

	"github.com/samber/lo"
)

type IConversationService interface {
	ListConversations(ctx context.Context, dispatcherID, query string) ([]ConversationGroup, error)
	StartConversation(dispatcherID, driverID string) (ConversationView, error)
	EnsureRoom(roomID domain.RoomID) error
}

// ConversationView is one row of the console's conversation list: the room
// plus the resolved driver name and the unread indicator.
type ConversationView struct {
	Room       domain.Room
	DriverName string
	Avatar     string
	Unread     bool
}

type ConversationGroup struct {
	Bucket        domain.RecencyBucket
	Conversations []ConversationView
}

// ConversationService is the aggregator: it lists a dispatcher's rooms,
// resolves counterpart names, filters by search text, and groups by
// recency. Directory failures degrade to a fallback label; store failures
// propagate.
type ConversationService struct {
	rooms     repositories.RoomRepository
	messages  repositories.MessageRepository
	directory directory.DriverDirectory
	log       *slog.Logger
	now       func() time.Time
}

func NewConversationService(log *slog.Logger, rooms repositories.RoomRepository,
	messages repositories.MessageRepository, dir directory.DriverDirectory) *ConversationService {
	return &ConversationService{
		rooms:     rooms,
		messages:  messages,
		directory: dir,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListConversations renders the grouped conversation list of a dispatcher.
// Rooms keep their recency-descending order inside each bucket; empty
// buckets are omitted. An empty query keeps every room.
func (s *ConversationService) ListConversations(ctx context.Context, dispatcherID, query string) ([]ConversationGroup, error) {
	rooms, err := s.rooms.ListForDispatcher(dispatcherID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(rooms))
	for _, room := range rooms {
		view, err := s.resolve(ctx, room)
		if err != nil {
			return nil, err
		}
		if !matches(view.DriverName, query) {
			continue
		}
		views = append(views, view)
	}

	grouped := lo.GroupBy(views, func(view ConversationView) domain.RecencyBucket {
		return domain.BucketFor(view.Room.LastMessageAt, s.now())
	})

	// Never nil: an empty list renders as [] at the API boundary.
	groups := make([]ConversationGroup, 0, len(domain.BucketOrder))
	for _, bucket := range domain.BucketOrder {
		if conversations, ok := grouped[bucket]; ok {
			groups = append(groups, ConversationGroup{Bucket: bucket, Conversations: conversations})
		}
	}
	return groups, nil
}

// StartConversation computes the deterministic room key and returns the
// existing room, or a fresh placeholder with empty metadata. No store
// write occurs until the first message is appended.
func (s *ConversationService) StartConversation(dispatcherID, driverID string) (ConversationView, error) {
	roomID, err := domain.NewRoomID(dispatcherID, driverID)
	if err != nil {
		return ConversationView{}, err
	}
	room, err := s.rooms.Get(roomID)
	if errors.Is(err, errors.ErrNotFound) {
		room = domain.NewRoom(roomID)
	} else if err != nil {
		return ConversationView{}, err
	}
	return s.resolve(context.Background(), room)
}

// EnsureRoom pre-creates an empty directory entry so an un-messaged
// conversation still shows up as a valid list entry.
func (s *ConversationService) EnsureRoom(roomID domain.RoomID) error {
	if _, err := domain.ParseRoomID(string(roomID)); err != nil {
		return err
	}
	return s.rooms.Ensure(roomID)
}

// resolve attaches the driver profile and the unread flag to a room.
// A directory miss or outage keeps the room in the list under a fallback
// label instead of dropping it.
func (s *ConversationService) resolve(ctx context.Context, room domain.Room) (ConversationView, error) {
	view := ConversationView{Room: room, DriverName: fallbackName(room.ID.DriverID())}

	profile, err := s.directory.Lookup(ctx, room.ID.DriverID())
	if err != nil {
		s.log.Warn("Driver lookup failed, using fallback label",
			"driver", room.ID.DriverID(), "error", err)
	} else {
		view.DriverName = profile.Name
		view.Avatar = profile.Avatar
	}

	unread, err := s.messages.HasUnseen(room.ID)
	if err != nil {
		return ConversationView{}, err
	}
	view.Unread = unread
	return view, nil
}

func matches(name, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}

func fallbackName(driverID string) string {
	return "Driver " + driverID
}
