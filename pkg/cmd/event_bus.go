package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowengine/pkg/channels/gochannel"
	"github.com/dukex/flowengine/pkg/channels/kafka"
	"github.com/dukex/flowengine/pkg/eventbus"
)

const serviceName = "flowengine"

// NewEventBus builds the progress event bus for provider. An empty provider or
// "none" disables progress publishing and returns a nil bus.
//
//nolint:ireturn
func NewEventBus(provider, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "none":
		return nil, nil
	case "gochannel", "memory":
		pub, sub := gochannel.CreateChannel(watermillLogger, gochannel.DefaultConfig())

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, kafka.ParseBrokers(brokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
