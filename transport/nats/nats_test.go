package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/botcore/transport"
)

type stubConfig struct {
	natsURL string
}

func (s *stubConfig) GetEventBus() string           { return TransportName }
func (s *stubConfig) GetKafkaBrokers() []string     { return nil }
func (s *stubConfig) GetKafkaConsumerGroup() string { return "" }
func (s *stubConfig) GetRabbitMQURL() string        { return "" }
func (s *stubConfig) GetNATSURL() string            { return s.natsURL }

type stubPubSub struct{ closed bool }

func (s *stubPubSub) Publish(string, ...*message.Message) error { return nil }
func (s *stubPubSub) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}
func (s *stubPubSub) Close() error {
	s.closed = true
	return nil
}

func swapFactories(t *testing.T) {
	t.Helper()
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory, SubscriberFactory = originalPub, originalSub
	})
}

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	transport.DefaultRegistry = transport.NewRegistry()
	defer func() { transport.DefaultRegistry = original }()

	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "nats", caps.Name)
	assert.False(t, caps.SupportsOrdering)
	assert.Equal(t, transport.NATSCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	t.Run("passes url and core options", func(t *testing.T) {
		swapFactories(t)

		pub, sub := &stubPubSub{}, &stubPubSub{}
		var pubCfg nats.PublisherConfig
		var subCfg nats.SubscriberConfig
		PublisherFactory = func(cfg nats.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
			pubCfg = cfg
			return pub, nil
		}
		SubscriberFactory = func(cfg nats.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
			subCfg = cfg
			return sub, nil
		}

		tr, err := Build(context.Background(), &stubConfig{natsURL: "nats://bus:4222"}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Same(t, pub, tr.Publisher)
		assert.Same(t, sub, tr.Subscriber)

		assert.Equal(t, "nats://bus:4222", pubCfg.URL)
		assert.Equal(t, "nats://bus:4222", subCfg.URL)
		assert.True(t, pubCfg.JetStream.Disabled)
		assert.True(t, subCfg.JetStream.Disabled)
		assert.Len(t, pubCfg.NatsOptions, 3)
	})

	t.Run("defaults the url", func(t *testing.T) {
		swapFactories(t)

		var url string
		PublisherFactory = func(cfg nats.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
			url = cfg.URL
			return &stubPubSub{}, nil
		}
		SubscriberFactory = func(nats.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return &stubPubSub{}, nil
		}

		_, err := Build(context.Background(), &stubConfig{}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Equal(t, nc.DefaultURL, url)
	})

	t.Run("publisher failure", func(t *testing.T) {
		swapFactories(t)
		PublisherFactory = func(nats.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), &stubConfig{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("subscriber failure closes the publisher", func(t *testing.T) {
		swapFactories(t)
		pub := &stubPubSub{}
		PublisherFactory = func(nats.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		SubscriberFactory = func(nats.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscriber error")
		}

		_, err := Build(context.Background(), &stubConfig{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
		assert.True(t, pub.closed)
	})
}
