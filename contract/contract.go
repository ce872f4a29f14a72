//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"dispatch-chat/domain"
	"dispatch-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Supervision (restart on panic) is the supervisor's job.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision purposes.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives domain events from the fanout. Implementations must
// not block longer than the context allows; slow consumers are dropped,
// never waited on.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry indexes live subscriptions by room.
type IRegistry interface {
	GetSinksForRoom(roomID domain.RoomID) []EventSink
	Subscribe(subscriptionID string, roomID domain.RoomID, sink EventSink)
	Unsubscribe(subscriptionID string, roomID domain.RoomID)
}
