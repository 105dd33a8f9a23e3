// Package eventbus carries execution lifecycle events to external consumers.
// Publishing is optional and best effort; the engine runs identically with no
// bus configured.
package eventbus

import (
	"context"

	"github.com/mdrealofficial/node-bot-sub005/pkg/events"
)

// Event is any lifecycle event that can be published on the bus.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes one event keyed by execution id, so all events of
// one execution land on the same partition.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber registers handlers per event type and starts consumption.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event interface{}) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
