// Package runtime wires the append pipeline: per-room write serialization,
// the atomic message+projection commit, and the asynchronous fan-out to
// live subscribers. It orchestrates the system without containing domain
// rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dispatch-chat/contract"
	"dispatch-chat/domain"
	"dispatch-chat/domain/event"
	"dispatch-chat/errors"
	"dispatch-chat/repositories"
	"dispatch-chat/runtime/workers"
	chansink "dispatch-chat/sink"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Orchestrator struct {
	log         *slog.Logger
	db          *badger.DB
	messages    repositories.MessageRepository
	rooms       repositories.RoomRepository
	registry    contract.IRegistry
	supervisor  contract.ISupervisor
	events      chan event.DomainEvent
	locks       *roomLocks
	sinkBuffer  int
	sinkTimeout time.Duration

	permanentSinks []contract.EventSink
}

func NewOrchestrator(log *slog.Logger, db *badger.DB,
	messages repositories.MessageRepository, rooms repositories.RoomRepository,
	supervisor contract.ISupervisor, registry contract.IRegistry,
	bufferSize, sinkBuffer int, sinkTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		db:          db,
		messages:    messages,
		rooms:       rooms,
		registry:    registry,
		supervisor:  supervisor,
		events:      make(chan event.DomainEvent, bufferSize),
		locks:       newRoomLocks(),
		sinkBuffer:  sinkBuffer,
		sinkTimeout: sinkTimeout,
	}
}

// AddSinks registers permanent sinks that receive every appended-message
// event regardless of room (telemetry counters). Must be called before Start.
func (o *Orchestrator) AddSinks(sinks ...contract.EventSink) {
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Start spawns the supervised fanout worker. Delivery to subscribers
// happens on that worker, never on the append path.
func (o *Orchestrator) Start(ctx context.Context) {
	fanout := workers.NewEventFanout(o.log, o.registry, o.events, o.sinkTimeout).
		Add(o.permanentSinks...)
	o.supervisor.Add(fanout)
	go o.supervisor.Run(ctx)
}

func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

// Send appends a message to a room. Appends to the same room are
// serialized by a per-room lock; appends to different rooms proceed in
// parallel. The message write and the room directory update commit in one
// transaction, so a failed send leaves no partial state. The append
// completes once durably stored; fan-out is asynchronous.
func (o *Orchestrator) Send(_ context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	lock := o.locks.lockFor(cmd.Room)
	lock.Lock()
	defer lock.Unlock()

	var stored repositories.DiskMessage
	err := o.db.Update(func(txn *badger.Txn) error {
		var err error
		stored, err = o.messages.Append(txn, repositories.DiskMessage{
			Room:     cmd.Room,
			DriverID: cmd.Room.DriverID(),
			Body:     cmd.Body,
			At:       time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return o.rooms.UpsertLastMessage(txn, cmd.Room, stored)
	})
	if err != nil {
		return domain.Message{}, err
	}

	message := toMessage(stored)
	o.emit(event.MessageAppended{Room: cmd.Room, Message: message, Seq: stored.Seq})
	return message, nil
}

// Messages returns a page of the room's log in ascending order, plus the
// cursor addressing older history.
func (o *Orchestrator) Messages(cmd domain.ListMessagesCommand) ([]domain.Message, *string, error) {
	stored, cursor, err := o.messages.List(cmd.Room, cmd.Limit, cmd.Cursor)
	if err != nil {
		return nil, nil, err
	}
	return lo.Map(stored, func(item repositories.DiskMessage, _ int) domain.Message {
		return toMessage(item)
	}), cursor, nil
}

// MarkSeen takes the room lock so the seen sweep never races a concurrent
// append into a transaction conflict.
func (o *Orchestrator) MarkSeen(roomID domain.RoomID) error {
	lock := o.locks.lockFor(roomID)
	lock.Lock()
	defer lock.Unlock()
	return o.messages.MarkSeen(roomID)
}

// Subscription is a live, cancellable registration. Close is idempotent.
type Subscription struct {
	ID     string
	room   domain.RoomID
	done   <-chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	orch   *Orchestrator
	err    error
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.orch.registry.Unsubscribe(s.ID, s.room)
		s.cancel()
	})
}

// Done closes when the subscription ends, whether by Close or by a lost
// live channel.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended. Valid once Done is closed:
// errors.ErrSubscriptionLost when the live channel was dropped and the
// consumer must resubscribe, nil on a plain Close.
func (s *Subscription) Err() error {
	return s.err
}

func (s *Subscription) fail(err error) {
	s.err = err
	s.Close()
}

// Subscribe registers a live listener for a room. The listener first
// receives every currently-stored message in ascending order, then each
// newly appended message in append order. The sink is registered before
// the history read, so nothing appended in between is lost; live events
// already covered by the replay are fenced out by their append sequence,
// so a subscriber sees each stored message once. Reconnecting replays
// history again, which is why consumers still de-duplicate by message id.
//
// onMessage runs on a dedicated goroutine; Subscribe itself does not block
// beyond the registration and history read. A subscriber that falls behind
// the live channel is closed with errors.ErrSubscriptionLost rather than
// left with a silent gap.
func (o *Orchestrator) Subscribe(ctx context.Context, roomID domain.RoomID,
	onMessage func(domain.Message)) (*Subscription, error) {
	id := uuid.NewString()
	live := chansink.NewChannelSink(o.log, o.sinkBuffer)
	o.registry.Subscribe(id, roomID, live)

	history, _, err := o.messages.List(roomID, nil, nil)
	if err != nil {
		o.registry.Unsubscribe(id, roomID)
		return nil, err
	}

	// Everything below replayedThrough is already delivered by the replay.
	var replayedThrough uint64
	if n := len(history); n > 0 {
		replayedThrough = history[n-1].Seq + 1
	}

	subCtx, cancel := context.WithCancel(ctx)
	subscription := &Subscription{ID: id, room: roomID, done: subCtx.Done(), cancel: cancel, orch: o}

	go func() {
		for _, stored := range history {
			onMessage(toMessage(stored))
		}
		for {
			select {
			case <-subCtx.Done():
				return
			case <-live.Lost():
				o.log.Warn("Subscriber fell behind, closing subscription", "room", roomID)
				subscription.fail(errors.ErrSubscriptionLost)
				return
			case evt := <-live.Events:
				appended, ok := evt.(event.MessageAppended)
				if !ok || appended.Seq < replayedThrough {
					continue
				}
				onMessage(appended.Message)
			}
		}
	}()
	return subscription, nil
}

// emit hands the event to the fanout worker without ever blocking the
// publisher. A full channel drops the event for live subscribers only; the
// stored log remains the source of truth for the pull path.
func (o *Orchestrator) emit(evt event.DomainEvent) {
	select {
	case o.events <- evt:
	default:
		o.log.Warn("Event channel full, dropping fanout", "room", evt.RoomID())
	}
}

func toMessage(stored repositories.DiskMessage) domain.Message {
	return domain.Message{
		ID:       stored.ID,
		DriverID: stored.DriverID,
		Body:     stored.Body,
		Seen:     stored.Seen,
		SentAt:   stored.At,
	}
}

// roomLocks hands out one mutex per room key. Rooms are independent
// shards; no cross-room coordination exists or is needed.
type roomLocks struct {
	mu    sync.Mutex
	locks map[domain.RoomID]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[domain.RoomID]*sync.Mutex)}
}

func (l *roomLocks) lockFor(roomID domain.RoomID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.locks[roomID]; !ok {
		l.locks[roomID] = &sync.Mutex{}
	}
	return l.locks[roomID]
}
