// Package transports imports the built-in event bus transports so they
// register with the default registry.
package transports

import (
	_ "github.com/drblury/botcore/transport/channel"
	_ "github.com/drblury/botcore/transport/kafka"
	_ "github.com/drblury/botcore/transport/nats"
	_ "github.com/drblury/botcore/transport/rabbitmq"
)
