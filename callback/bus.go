// Package callback implements the typed lifecycle event bus: fan-out of
// QUERY_START/COMPLEXITY_DETECTED/.../QUERY_COMPLETE events to registered
// subscribers, fire-and-forget, with per-subscriber panic isolation and
// per-query ordering.
package callback

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cascadehq/cascaderouter/core"
)

// Kind enumerates the lifecycle event kinds.
type Kind string

const (
	KindQueryStart         Kind = "QUERY_START"
	KindComplexityDetected Kind = "COMPLEXITY_DETECTED"
	KindDomainDetected     Kind = "DOMAIN_DETECTED"
	KindModelCallStart     Kind = "MODEL_CALL_START"
	KindModelCallComplete  Kind = "MODEL_CALL_COMPLETE"
	KindModelCallError     Kind = "MODEL_CALL_ERROR"
	KindCascadeDecision    Kind = "CASCADE_DECISION"
	KindBudgetWarning      Kind = "BUDGET_WARNING"
	KindBudgetExceeded     Kind = "BUDGET_EXCEEDED"
	KindQueryComplete      Kind = "QUERY_COMPLETE"
	KindQueryError         Kind = "QUERY_ERROR"
)

// Event is one published lifecycle occurrence.
type Event struct {
	ID      string
	Kind    Kind
	Ts      time.Time
	QueryID string
	Payload interface{}
}

// Handler receives published events. A handler that needs to do I/O
// should offload to its own worker — Publish calls handlers
// synchronously, in registration order, on the publisher's goroutine.
type Handler func(Event)

// Bus is the process-wide event fan-out. Safe for concurrent Publish and
// Subscribe. The subscriber table is copy-on-write: Subscribe/Unsubscribe
// replace the whole slice under lock; Publish reads the current slice
// without holding a lock across handler invocations.
type Bus struct {
	mu          sync.Mutex
	subscribers map[Kind][]subscriber
	logger      core.Logger
}

type subscriber struct {
	id      string
	handler Handler
}

// NewBus builds an empty Bus. logger may be nil (defaults to a no-op) —
// it is used only to report a removed panicking subscriber.
func NewBus(logger core.Logger) *Bus {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Bus{
		subscribers: make(map[Kind][]subscriber),
		logger:      logger,
	}
}

// Subscribe registers handler for kind and returns a subscription id
// usable with Unsubscribe.
func (b *Bus) Subscribe(kind Kind, handler Handler) string {
	id := uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	existing := b.subscribers[kind]
	next := make([]subscriber, len(existing), len(existing)+1)
	copy(next, existing)
	next = append(next, subscriber{id: id, handler: handler})
	b.subscribers[kind] = next
	return id
}

// Unsubscribe removes the subscription registered under id, across all
// kinds.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind, subs := range b.subscribers {
		next := make([]subscriber, 0, len(subs))
		for _, s := range subs {
			if s.id != id {
				next = append(next, s)
			}
		}
		b.subscribers[kind] = next
	}
}

// Publish delivers event to every subscriber registered for event.Kind, in
// registration order. A panicking subscriber is caught, logged, and
// removed — it never affects the publishing query.
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Ts.IsZero() {
		event.Ts = time.Now()
	}

	b.mu.Lock()
	subs := b.subscribers[event.Kind]
	b.mu.Unlock()

	var toRemove []string
	for _, s := range subs {
		if b.invoke(s, event) {
			toRemove = append(toRemove, s.id)
		}
	}
	for _, id := range toRemove {
		b.Unsubscribe(id)
	}
}

// invoke calls s.handler, recovering a panic and reporting whether the
// subscriber should be removed.
func (b *Bus) invoke(s subscriber, event Event) (shouldRemove bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("callback subscriber panicked; removing", map[string]interface{}{
				"subscriber_id": s.id,
				"event_kind":    string(event.Kind),
				"recovered":     r,
			})
			shouldRemove = true
		}
	}()
	s.handler(event)
	return false
}
