package event

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/agentops/internal/logging"
)

// Default buffer limits for an operation's event history.
const (
	DefaultMaxBuffered = 5000
	DefaultTrimTo      = 3000
)

// Subscriber receives events from a Bus.
type Subscriber interface {
	Receive(Event)
}

// SubscriberFunc adapts an ordinary function to the Subscriber interface.
type SubscriberFunc func(Event)

// Receive calls f(e).
func (f SubscriberFunc) Receive(e Event) { f(e) }

// SubscriptionID identifies a registered subscriber.
type SubscriptionID uint64

type subscription struct {
	id  SubscriptionID
	sub Subscriber
}

// Bus is an ordered, bounded event history with synchronous fan-out.
type Bus struct {
	emitMu sync.Mutex // serializes Emit and Replay

	mu     sync.RWMutex
	events []Event
	subs   []subscription

	maxBuffered int
	trimTo      int
	nextID      atomic.Uint64
	logger      *logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLimits overrides the trim policy. A non-positive max disables trimming.
func WithLimits(maxBuffered, trimTo int) Option {
	return func(b *Bus) {
		b.maxBuffered = maxBuffered
		b.trimTo = trimTo
	}
}

// WithLogger sets the logger used to report subscriber panics.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		maxBuffered: DefaultMaxBuffered,
		trimTo:      DefaultTrimTo,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.trimTo <= 0 || b.trimTo > b.maxBuffered {
		b.trimTo = b.maxBuffered
	}
	return b
}

// Emit appends e to the buffer and delivers it to every current subscriber.
// Subscribers registered while e is being delivered do not receive it.
func (b *Bus) Emit(e Event) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	b.events = append(b.events, e)
	if b.maxBuffered > 0 && len(b.events) > b.maxBuffered {
		kept := make([]Event, b.trimTo)
		copy(kept, b.events[len(b.events)-b.trimTo:])
		b.events = kept
	}
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		b.safeCall(s.sub, e)
	}
}

// Subscribe registers s and returns the events buffered so far. Both happen
// under one lock, so every event is either in the backlog or delivered to s,
// never both and never neither.
func (b *Bus) Subscribe(s Subscriber) ([]Event, SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	backlog := make([]Event, len(b.events))
	copy(backlog, b.events)

	id := SubscriptionID(b.nextID.Add(1))
	b.subs = append(b.subs, subscription{id: id, sub: s})
	return backlog, id
}

// Replay delivers the backlog to s and then registers it for live events.
// Emission is held off while the backlog is delivered, so s observes one
// ordered stream. Replay must not be called from inside a subscriber of b.
func (b *Bus) Replay(s Subscriber) SubscriptionID {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	backlog, id := b.Subscribe(s)
	for _, e := range backlog {
		b.safeCall(s, e)
	}
	return id
}

// Unsubscribe removes a subscriber. Unknown or repeated ids are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Events returns a copy of the buffered events.
func (b *Bus) Events() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of buffered events.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// safeCall recovers a panicking subscriber so the rest still get the event.
func (b *Bus) safeCall(s Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				"operation_id", e.OperationID,
				"event_type", string(e.Type),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	s.Receive(e)
}
