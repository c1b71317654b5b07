package channel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/botcore/transport"
)

type stubConfig struct{}

func (stubConfig) GetEventBus() string           { return TransportName }
func (stubConfig) GetKafkaBrokers() []string     { return nil }
func (stubConfig) GetKafkaConsumerGroup() string { return "" }
func (stubConfig) GetRabbitMQURL() string        { return "" }
func (stubConfig) GetNATSURL() string            { return "" }

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	transport.DefaultRegistry = transport.NewRegistry()
	defer func() { transport.DefaultRegistry = original }()

	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, transport.ChannelCapabilities, caps)
	assert.True(t, caps.SupportsOrdering)
	assert.Equal(t, caps, Capabilities())
}

func TestBuildUsesFactoryWithOrderedConfig(t *testing.T) {
	originalFactory := Factory
	defer func() { Factory = originalFactory }()

	var got gochannel.Config
	Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		got = cfg
		return originalFactory(cfg, logger)
	}

	tr, err := Build(context.Background(), stubConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer tr.Close()

	assert.True(t, got.BlockPublishUntilSubscriberAck)
	assert.Same(t, tr.Publisher, tr.Subscriber)
}

func TestPublishKeepsOrder(t *testing.T) {
	tr, err := Build(context.Background(), stubConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := tr.Subscriber.Subscribe(ctx, "bot.events")
	require.NoError(t, err)

	go func() {
		for i := 0; i < 5; i++ {
			_ = tr.Publisher.Publish("bot.events", message.NewMessage(watermill.NewUUID(), []byte(fmt.Sprint(i))))
		}
	}()

	for i := 0; i < 5; i++ {
		select {
		case msg := <-messages:
			assert.Equal(t, fmt.Sprint(i), string(msg.Payload))
			msg.Ack()
		case <-time.After(5 * time.Second):
			t.Fatalf("message %d not delivered", i)
		}
	}
}
