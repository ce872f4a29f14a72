package sink

import (
	"context"
	"log/slog"
	"sync"

	"dispatch-chat/domain/event"
	"dispatch-chat/errors"
)

// ChannelSink bridges the fanout to one subscriber through a buffered
// channel. Delivery is bounded: a consumer that cannot keep up within the
// context deadline never stalls the fanout. The sink is marked lost and
// the subscription is closed, forcing a resubscribe with a fresh history
// replay rather than a silent gap in the stream.
type ChannelSink struct {
	Events chan event.DomainEvent
	log    *slog.Logger
	lost   chan struct{}
	once   sync.Once
}

func NewChannelSink(log *slog.Logger, bufferSize int) *ChannelSink {
	return &ChannelSink{
		Events: make(chan event.DomainEvent, bufferSize),
		log:    log,
		lost:   make(chan struct{}),
	}
}

// Consume is called by the fanout worker. The subscriber's pump reads the
// channel from the other side and pushes events down its transport.
func (s *ChannelSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		s.log.Warn("Subscriber too slow, dropping subscription", "room", e.RoomID())
		s.once.Do(func() { close(s.lost) })
		return errors.ErrSubscriptionLost
	}
}

// Lost closes after the first dropped delivery. From that point the stream
// has a gap and only a resubscribe restores it.
func (s *ChannelSink) Lost() <-chan struct{} {
	return s.lost
}
