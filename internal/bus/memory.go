package bus

import (
	"context"
	"sync"

	"storyteller/internal/domain/story"
)

// MemoryBus is an in-process Bus used when no broker is configured and by
// tests. Delivery is asynchronous per subscriber, mirroring the broker's lack
// of ordering or rendezvous guarantees.
type MemoryBus struct {
	mu          sync.Mutex
	subscribers []subscriber
	wg          sync.WaitGroup
	closed      bool
}

type subscriber struct {
	name string
	h    Handler
}

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ctx context.Context, evt story.FanOutEvent) error {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil
	}
	for _, sub := range subs {
		b.wg.Add(1)
		go func(sub subscriber) {
			defer b.wg.Done()
			// Delivery outlives the publisher's request context.
			sub.h(context.WithoutCancel(ctx), evt)
		}(sub)
	}
	return nil
}

func (b *MemoryBus) Subscribe(name string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber{name: name, h: h})
	return nil
}

// Wait blocks until all in-flight deliveries finish. Tests use it to avoid
// sleeping.
func (b *MemoryBus) Wait() {
	b.wg.Wait()
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

var _ Bus = (*MemoryBus)(nil)
