// Package eventbus fans internal signals (such as an N-1 flow's
// deallocation) out to every interested subsystem without those subsystems
// sharing mutable state.
package eventbus

import (
	"context"
	"sync"

	"github.com/rinad/rinad/internal/log"
)

// Kind names an event kind. The registry is open (any string is valid) but
// this repository only produces NMinus1FlowDeallocated today.
type Kind string

// NMinus1FlowDeallocated fires when a supporting (N-1) flow is torn down,
// forcing the Security Manager to discard any context riding on it.
const NMinus1FlowDeallocated Kind = "N_MINUS_1_FLOW_DEALLOCATED"

// Event is the payload delivered to subscribers. Fields beyond Kind are
// kind-specific; PortID is populated for NMinus1FlowDeallocated.
type Event struct {
	Kind   Kind
	PortID uint32
}

// Handler processes one event. Handlers run synchronously on the
// publisher's goroutine and must not block; slow work should be hand off
// through a queue.MessageQueue instead of being done inline.
type Handler func(Event)

// Bus is a single-threaded, synchronous publish/subscribe registry.
// Subscribers for a given Kind are invoked in registration order.
type Bus struct {
	mu          sync.Mutex
	subscribers map[Kind][]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[Kind][]Handler)}
}

// Subscribe registers h to run whenever an event of kind k is published.
// There is no Unsubscribe: subscriptions live for the process's lifetime,
// matching the Security Manager's single standing subscription to
// NMinus1FlowDeallocated.
func (b *Bus) Subscribe(k Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[k] = append(b.subscribers[k], h)
}

// Publish fans ev out to every subscriber of ev.Kind, synchronously, in
// registration order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.subscribers[ev.Kind]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Drain dequeues values from q and publishes each Event it finds, until
// Dequeue returns an error; values that are not an Event are logged and
// dropped. It is meant to run on a dedicated worker.
func (b *Bus) Drain(q interface {
	Dequeue() (interface{}, error)
}) {
	for {
		v, err := q.Dequeue()
		if err != nil {
			return
		}
		ev, ok := v.(Event)
		if !ok {
			log.G(context.Background()).WithField("value", v).Warn("eventbus: dropping non-Event value from queue")
			continue
		}
		b.Publish(ev)
	}
}
