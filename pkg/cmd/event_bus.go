package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/ivrflow/pkg/channels/gochannel"
	"github.com/dukex/ivrflow/pkg/channels/kafka"
	"github.com/dukex/ivrflow/pkg/eventbus"
)

const serviceName = "ivrflow"

// NewEventBus builds the event bus for provider: "gochannel" (in process) or "kafka".
// "none" and the empty string return nil; callers fall back to eventbus.Discard.
func NewEventBus(provider, kafkaBrokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger.With("module", "watermill"))

	switch provider {
	case "", "none":
		return nil, nil
	case "gochannel", "memory":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, eventbus.WithLogger(logger)), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, kafka.ParseBrokers(kafkaBrokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, eventbus.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: event bus %s", ErrUnsupportedProvider, provider)
	}
}
