// Package eventbus publishes call and audio events for real-time consumers over watermill.
package eventbus

import (
	"context"
	"log/slog"

	"github.com/dukex/ivrflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}

// PublishBestEffort publishes and only logs failures. Call handling never waits on consumers.
func PublishBestEffort(ctx context.Context, logger *slog.Logger, publisher EventPublisher, key string, event Event) {
	if publisher == nil {
		return
	}

	if err := publisher.Publish(ctx, key, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, string, Event) error {
	return nil
}
