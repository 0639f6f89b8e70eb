package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/ivrflow/pkg/events"
)

var ErrUnknownEventType = errors.New("unknown event type")

type tenantScoped interface {
	Tenant() string
}

// WatermillEventBus fans events out on a single topic. Events are keyed by call or job id so
// partitioned brokers keep each call in order.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	tenantID   string
	logger     *slog.Logger

	mu       sync.RWMutex
	handlers map[events.EventType]EventHandler
}

type Option func(*WatermillEventBus)

// WithTenant makes the subscriber drop events of every other tenant.
func WithTenant(tenantID string) Option {
	return func(eb *WatermillEventBus) {
		eb.tenantID = tenantID
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(eb *WatermillEventBus) {
		eb.logger = logger
	}
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, opts ...Option) *WatermillEventBus {
	eb := &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     slog.New(slog.DiscardHandler),
		handlers:   make(map[events.EventType]EventHandler),
	}

	for _, opt := range opts {
		opt(eb)
	}

	return eb
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event.GetType(), err)
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	if scoped, ok := event.(tenantScoped); ok {
		msg.Metadata.Set(events.TenantMetadataKey, scoped.Tenant())
	}

	return eb.publisher.Publish(events.Topic, msg)
}

func newEvent(eventType events.EventType) (any, bool) {
	switch eventType {
	case events.CallStartedEvent:
		return &events.CallStarted{}, true
	case events.CallNodeVisitedEvent:
		return &events.CallNodeVisited{}, true
	case events.CallEndedEvent:
		return &events.CallEnded{}, true
	case events.AudioJobProgressEvent:
		return &events.AudioJobProgress{}, true
	default:
		return nil, false
	}
}

// Handle registers the handler for one event type, replacing any earlier one.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	if _, ok := newEvent(eventType); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	eb.mu.Lock()
	eb.handlers[eventType] = handler
	eb.mu.Unlock()

	return nil
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eb.dispatch(ctx, msg)
		}
	}()

	return nil
}

// dispatch acks malformed and foreign messages so they are not redelivered forever;
// only handler failures are nacked.
func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) {
	if eb.tenantID != "" && msg.Metadata.Get(events.TenantMetadataKey) != eb.tenantID {
		msg.Ack()

		return
	}

	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	eb.mu.RLock()
	handler, ok := eb.handlers[eventType]
	eb.mu.RUnlock()

	if !ok {
		msg.Ack()

		return
	}

	event, _ := newEvent(eventType)
	if err := json.Unmarshal(msg.Payload, event); err != nil {
		eb.logger.WarnContext(ctx, "dropping malformed event", "event_type", eventType, "message_id", msg.UUID, "error", err)
		msg.Ack()

		return
	}

	if err := handler(ctx, event); err != nil {
		eb.logger.WarnContext(ctx, "event handler failed", "event_type", eventType, "message_id", msg.UUID, "error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func (eb *WatermillEventBus) Close() error {
	return errors.Join(eb.publisher.Close(), eb.subscriber.Close())
}
