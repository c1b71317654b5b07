package transport

// Capabilities describes what a transport guarantees.
type Capabilities struct {
	// Name is the registry name of the transport.
	Name string

	// SupportsOrdering means events leave the bus in the order they were
	// published on one topic.
	SupportsOrdering bool

	// SupportsAck means a consumer acknowledges each message explicitly.
	SupportsAck bool

	// Durable means published events survive a process restart.
	Durable bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// Predefined capability sets for the built-in transports.
var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
	}

	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsAck:      true,
		Durable:          true,
		MaxMessageSize:   1048576,
	}

	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsAck:      true,
		Durable:          true,
	}

	// Core NATS fans out to subscribers without ordering or persistence.
	NATSCapabilities = Capabilities{
		Name:           "nats",
		MaxMessageSize: 1048576,
	}
)
