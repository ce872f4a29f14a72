package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"dispatch-chat/directory"
	"dispatch-chat/domain"
	"dispatch-chat/observability"
	"dispatch-chat/repositories"
	"dispatch-chat/runtime"
	"dispatch-chat/runtime/workers"
	"dispatch-chat/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// Test_Scenario walks a dispatcher through a full conversation: start a
// chat with a driver, subscribe, send the first message, and watch the
// room record, the live stream and the grouped list all reflect it.
func Test_Scenario(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	defer db.Close()

	// 1. Wire the whole core in-process
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	messageRepository, err := repositories.NewMessageRepository(db, log)
	req.NoError(err)
	defer messageRepository.Close()
	roomRepository := repositories.NewRoomRepository(db, log)

	orchestrator := runtime.NewOrchestrator(log, db, messageRepository, roomRepository,
		workers.NewSupervisor(log), runtime.NewRegistry(), 64, 16, 3*time.Second)
	monitor := observability.NewMonitor(log,
		messageRepository.SkippedRecords, roomRepository.SkippedRecords)
	orchestrator.AddSinks(monitor)
	orchestrator.Start(ctx)
	defer orchestrator.Stop()

	chats := services.NewChatService(orchestrator)
	conversations := services.NewConversationService(log, roomRepository, messageRepository,
		directory.Static{"42": {Name: "Ward Robinson"}})

	// 2. Dispatcher 5 starts a conversation with driver 42: the key is
	// deterministic and nothing is written yet
	view, err := conversations.StartConversation("5", "42")
	req.NoError(err)
	req.Equal(domain.RoomID("5_42"), view.Room.ID)
	req.Nil(view.Room.LastMessage)

	// 3. Subscribe before the first message
	received := make(chan domain.Message, 16)
	subscription, err := chats.Subscribe(ctx, view.Room.ID, func(message domain.Message) {
		received <- message
	})
	req.NoError(err)
	defer subscription.Close()

	// 4. Send the first message
	sent, err := chats.Send(ctx, domain.SendMessageCommand{Room: view.Room.ID, Body: "Hello"})
	req.NoError(err)

	// 5. The room record now carries the denormalized metadata
	room, err := roomRepository.Get(view.Room.ID)
	req.NoError(err)
	req.NotNil(room.LastMessage)
	req.Equal("Hello", *room.LastMessage)
	req.NotNil(room.LastMessageAt)

	// 6. The subscriber receives it live
	select {
	case live := <-received:
		req.Equal(sent.ID, live.ID)
		req.Equal("Hello", live.Body)
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber never received the message")
	}

	// 7. The conversation list groups the room under Today, with the
	// driver's resolved name and the unread indicator on
	groups, err := conversations.ListConversations(ctx, "5", "")
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal(domain.BucketToday, groups[0].Bucket)
	req.Equal("Ward Robinson", groups[0].Conversations[0].DriverName)
	req.True(groups[0].Conversations[0].Unread)

	// 8. Opening the room clears the indicator
	req.NoError(chats.MarkSeen(view.Room.ID))
	groups, err = conversations.ListConversations(ctx, "5", "")
	req.NoError(err)
	req.False(groups[0].Conversations[0].Unread)

	// 9. Nothing iterated was malformed and the append was counted
	req.Zero(messageRepository.SkippedRecords())
	req.Zero(roomRepository.SkippedRecords())
}
