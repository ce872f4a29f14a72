package workers

import (
	"context"
	"log/slog"
	"time"

	"dispatch-chat/contract"
	"dispatch-chat/domain/event"
)

// EventFanout broadcasts appended-message events to in-process consumers:
// the live subscribers of the event's room (resolved via the registry) and
// the permanent sinks (telemetry counters).
//
// It provides best-effort fan-out with no guarantees regarding durability
// or retries; within one room, events leave the channel in append order,
// so every sink observes them in append order. EventFanout is not a
// message broker.
type EventFanout struct {
	log            *slog.Logger
	registry       contract.IRegistry
	permanentSinks []contract.EventSink
	events         chan event.DomainEvent
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry,
	events chan event.DomainEvent, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{log: log, registry: registry, events: events, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.permanentSinks = append(w.permanentSinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout delivers one event to every permanent sink and every live
// subscriber of its room. Each delivery is bounded by sinkTimeout so one
// slow consumer cannot stall the others.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := append(w.permanentSinks, w.registry.GetSinksForRoom(evt.RoomID())...)
	for _, sink := range sinks {
		deliveryCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(deliveryCtx, evt); err != nil {
			w.log.Warn("Sink delivery failed", "room", evt.RoomID(), "error", err)
		}
		cancel()
	}
}
