package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const subscriberBuffer = 256

type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	dropped     atomic.Uint64
	onDrop      func(Event)
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string]chan Event),
	}
}

// OnDrop registers a callback invoked for every event a full subscriber missed.
func (b *InMemoryBus) OnDrop(fn func(Event)) {
	b.mu.Lock()
	b.onDrop = fn
	b.mu.Unlock()
}

func (b *InMemoryBus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		// Never block the request path on a slow subscriber.
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop(e)
			}
		}
	}
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, exists := b.subscribers[id]; exists {
			close(ch)
			delete(b.subscribers, id)
		}
	}

	return ch, unsubscribe
}

func (b *InMemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}
