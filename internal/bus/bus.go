// Package bus fans a single published event out to every subscriber at least
// once. Handlers must therefore be idempotent; the bus never interprets
// handler outcomes and never redelivers on its own beyond what the underlying
// transport does.
package bus

import (
	"context"

	"storyteller/internal/domain/story"
)

// Handler processes one fan-out event. It must not panic and must swallow its
// own failures; the record store, not the bus, carries error state.
type Handler func(ctx context.Context, evt story.FanOutEvent)

// Publisher is the producer-facing half of the bus.
type Publisher interface {
	Publish(ctx context.Context, evt story.FanOutEvent) error
}

// Bus delivers every published event to all named subscribers.
type Bus interface {
	Publisher
	Subscribe(name string, h Handler) error
	Close() error
}
