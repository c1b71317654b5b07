// Package transport defines the event bus backends the runtime can publish
// inbound events on. Each backend lives in its own sub-package and registers
// itself with the registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a factory.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes the subscriber and then the publisher. When both sides are
// the same pub/sub it is closed once.
func (t Transport) Close() error {
	var subErr error
	if t.Subscriber != nil {
		subErr = t.Subscriber.Close()
	}
	if t.Publisher == nil {
		return subErr
	}
	if same, ok := t.Subscriber.(message.Publisher); ok && same == t.Publisher {
		return subErr
	}
	if err := t.Publisher.Close(); err != nil {
		return err
	}
	return subErr
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the values transports need without depending on the full
// config package.
type Config interface {
	// GetEventBus returns the transport name.
	GetEventBus() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
}
