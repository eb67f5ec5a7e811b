package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowcrm/pkg/channels/gochannel"
	"github.com/dukex/flowcrm/pkg/channels/kafka"
	"github.com/dukex/flowcrm/pkg/eventbus"
)

// NewEventBus builds the event bus of a service. kafkaConfig is only read by the kafka provider.
func NewEventBus(provider string, kafkaConfig kafka.Config, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	var (
		pub message.Publisher
		sub message.Subscriber
		err error
	)

	switch provider {
	case "kafka":
		pub, sub, err = kafka.CreateChannel(watermillLogger, kafkaConfig)
	case "gochannel":
		pub, sub, err = gochannel.CreateChannel(watermillLogger)
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s pub/sub: %w", provider, err)
	}

	return eventbus.NewWatermillEventBus(pub, sub, logger), nil
}
