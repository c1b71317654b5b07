// Package transport adapts the event bus registry to the runtime's config.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/botcore/internal/runtime/config"
	errspkg "github.com/drblury/botcore/internal/runtime/errors"
	bus "github.com/drblury/botcore/transport"

	// Register the built-in event buses.
	_ "github.com/drblury/botcore/transport/transports"
)

// Transport is a publisher and subscriber pair produced by a factory.
type Transport = bus.Transport

// Capabilities describes what an event bus guarantees.
type Capabilities = bus.Capabilities

// Factory abstracts how the runtime builds its event bus.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
	Capabilities(name string) Capabilities
}

// DefaultFactory returns the factory backed by the default registry.
func DefaultFactory() Factory {
	return registryFactory{registry: bus.DefaultRegistry}
}

// NewFactory returns a factory backed by registry. It lets tests and
// embedders register custom buses without touching the default registry.
func NewFactory(registry *bus.Registry) Factory {
	if registry == nil {
		registry = bus.DefaultRegistry
	}
	return registryFactory{registry: registry}
}

type registryFactory struct {
	registry *bus.Registry
}

func (f registryFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, errspkg.ErrConfigRequired
	}
	return f.registry.Build(ctx, conf, logger)
}

func (f registryFactory) Capabilities(name string) Capabilities {
	return f.registry.GetCapabilities(name)
}
