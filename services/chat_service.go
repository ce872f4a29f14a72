//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"

	"dispatch-chat/domain"
	"dispatch-chat/runtime"
)

type IChatService interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	Messages(cmd domain.ListMessagesCommand) ([]domain.Message, *string, error)
	MarkSeen(roomID domain.RoomID) error
	Subscribe(ctx context.Context, roomID domain.RoomID, onMessage func(domain.Message)) (*runtime.Subscription, error)
}

// ChatService is the client-facing surface over the engine. Validation of
// the room key happens here, before any store access.
type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(orchestrator *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: orchestrator}
}

func (s *ChatService) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if _, err := domain.ParseRoomID(string(cmd.Room)); err != nil {
		return domain.Message{}, err
	}
	return s.orchestrator.Send(ctx, cmd)
}

func (s *ChatService) Messages(cmd domain.ListMessagesCommand) ([]domain.Message, *string, error) {
	if _, err := domain.ParseRoomID(string(cmd.Room)); err != nil {
		return nil, nil, err
	}
	return s.orchestrator.Messages(cmd)
}

func (s *ChatService) MarkSeen(roomID domain.RoomID) error {
	if _, err := domain.ParseRoomID(string(roomID)); err != nil {
		return err
	}
	return s.orchestrator.MarkSeen(roomID)
}

func (s *ChatService) Subscribe(ctx context.Context, roomID domain.RoomID,
	onMessage func(domain.Message)) (*runtime.Subscription, error) {
	if _, err := domain.ParseRoomID(string(roomID)); err != nil {
		return nil, err
	}
	return s.orchestrator.Subscribe(ctx, roomID, onMessage)
}
