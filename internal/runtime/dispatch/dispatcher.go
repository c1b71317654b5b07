// Package dispatch routes inbound events through the guard chain to the
// handlers registered for their type.
package dispatch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/botcore/internal/runtime/errors"
	"github.com/drblury/botcore/internal/runtime/event"
	"github.com/drblury/botcore/internal/runtime/guards"
)

// HandlerFunc reacts to a permitted event.
type HandlerFunc func(ctx context.Context, env *event.Envelope) error

// Outcome is the terminal state of one dispatch.
type Outcome int

const (
	// OutcomeNoHandlers means nothing was registered for the event type.
	OutcomeNoHandlers Outcome = iota
	// OutcomeVetoed means a guard stopped the event before any handler ran.
	OutcomeVetoed
	// OutcomeCompleted means every handler ran, whether or not some failed.
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoHandlers:
		return "no_handlers"
	case OutcomeVetoed:
		return "vetoed"
	case OutcomeCompleted:
		return "completed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Recorder counts permitted events.
type Recorder interface {
	Record(env *event.Envelope)
}

// ActionLogger writes the operational log lines of a dispatch.
type ActionLogger interface {
	LogAction(env *event.Envelope)
	Error(message string)
}

// Options wires a Dispatcher. Chain and Logger are required.
type Options struct {
	Chain  *guards.Chain
	Stats  Recorder
	Logger ActionLogger
	Hooks  Hooks
	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

type registeredHandler struct {
	name string
	fn   HandlerFunc
}

// Dispatcher evaluates the guard chain once per event and then runs the
// handlers registered for the event type in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]registeredHandler

	chain  *guards.Chain
	stats  Recorder
	logger ActionLogger
	hooks  Hooks
	tracer trace.Tracer
}

// New builds a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	chain := opts.Chain
	if chain == nil {
		chain = &guards.Chain{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("botcore/dispatch")
	}
	return &Dispatcher{
		handlers: make(map[string][]registeredHandler),
		chain:    chain,
		stats:    opts.Stats,
		logger:   opts.Logger,
		hooks:    opts.Hooks,
		tracer:   tracer,
	}, nil
}

// Register adds a handler for eventType. Handlers of one type run in the
// order they were registered.
func (d *Dispatcher) Register(eventType, name string, fn HandlerFunc) error {
	switch {
	case eventType == "":
		return errspkg.ErrEventTypeRequired
	case name == "":
		return errspkg.ErrHandlerNameRequired
	case fn == nil:
		return errspkg.ErrHandlerRequired
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], registeredHandler{name: name, fn: fn})
	return nil
}

// Handlers lists the handler names registered for eventType.
func (d *Dispatcher) Handlers(eventType string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers[eventType]))
	for _, h := range d.handlers[eventType] {
		names = append(names, h.name)
	}
	return names
}

// EventTypes returns the event types that have handlers, sorted.
func (d *Dispatcher) EventTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Chain exposes the guard chain so more guards can be added while wiring.
func (d *Dispatcher) Chain() *guards.Chain {
	return d.chain
}

// Dispatch runs one event through the pipeline. It never returns an error:
// guard and handler faults are logged and contained here.
func (d *Dispatcher) Dispatch(ctx context.Context, env *event.Envelope) Outcome {
	d.mu.RLock()
	handlers := d.handlers[env.Type]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return OutcomeNoHandlers
	}

	ctx, span := d.tracer.Start(ctx, "Dispatch", trace.WithAttributes(
		attribute.String("event.id", env.ID),
		attribute.String("event.type", env.Type),
		attribute.String("event.subtype", env.Subtype),
	))
	defer span.End()
	started := time.Now()

	res := d.chain.Evaluate(ctx, env)
	if !res.Permitted {
		span.SetAttributes(attribute.String("guard.vetoed_by", res.VetoedBy))
		if res.Fault != nil {
			span.RecordError(res.Fault)
			d.logger.Error(res.Fault.Error())
		}
		if d.hooks.OnVeto != nil {
			d.hooks.OnVeto(VetoContext{Context: ctx, Envelope: env, Guard: res.VetoedBy, Reason: res.Reason, Fault: res.Fault})
		}
		return OutcomeVetoed
	}

	if d.stats != nil {
		d.stats.Record(env)
	}
	d.logger.LogAction(env)

	failures := 0
	for _, h := range handlers {
		handlerStarted := time.Now()
		if err := invoke(ctx, h, env); err != nil {
			failures++
			fault := &errspkg.HandlerFaultError{EventType: env.Type, Handler: h.name, Err: err}
			span.RecordError(fault)
			d.logger.Error(fault.Error())
			if d.hooks.OnHandlerError != nil {
				d.hooks.OnHandlerError(HandlerContext{
					Context:  ctx,
					Envelope: env,
					Handler:  h.name,
					Duration: time.Since(handlerStarted),
				}, fault)
			}
		}
	}

	if failures > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handler(s) failed", failures))
	}
	if d.hooks.OnComplete != nil {
		d.hooks.OnComplete(CompletionContext{
			Context:  ctx,
			Envelope: env,
			Handlers: len(handlers),
			Failures: failures,
			Duration: time.Since(started),
		})
	}
	return OutcomeCompleted
}

func invoke(ctx context.Context, h registeredHandler, env *event.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errspkg.FromPanic(r)
		}
	}()
	return h.fn(ctx, env)
}
