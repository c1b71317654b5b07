package dispatch

import (
	"context"
	"time"

	"github.com/drblury/botcore/internal/runtime/event"
	"github.com/drblury/botcore/internal/runtime/logging"
)

// VetoContext describes a dispatch stopped by the guard chain.
type VetoContext struct {
	Context  context.Context
	Envelope *event.Envelope
	// Guard is the name of the vetoing guard.
	Guard  string
	Reason string
	// Fault is set when the guard failed instead of vetoing on purpose.
	Fault error
}

// HandlerContext describes one handler invocation.
type HandlerContext struct {
	Context  context.Context
	Envelope *event.Envelope
	Handler  string
	// Duration is how long the handler ran before it failed.
	Duration time.Duration
}

// CompletionContext describes a finished, permitted dispatch.
type CompletionContext struct {
	Context  context.Context
	Envelope *event.Envelope
	Handlers int
	Failures int
	Duration time.Duration
}

// Hooks are optional callbacks around a dispatch. Nil hooks are skipped.
type Hooks struct {
	// OnVeto runs when a guard stops the event, before it is dropped.
	OnVeto func(ctx VetoContext)
	// OnHandlerError runs for every handler that returned an error or panicked.
	OnHandlerError func(ctx HandlerContext, err error)
	// OnComplete runs once all handlers of a permitted dispatch have returned.
	OnComplete func(ctx CompletionContext)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnVeto:         chainVetoHooks(h.OnVeto, other.OnVeto),
		OnHandlerError: chainHandlerErrorHooks(h.OnHandlerError, other.OnHandlerError),
		OnComplete:     chainCompleteHooks(h.OnComplete, other.OnComplete),
	}
}

func chainVetoHooks(a, b func(VetoContext)) func(VetoContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx VetoContext) {
		a(ctx)
		b(ctx)
	}
}

func chainHandlerErrorHooks(a, b func(HandlerContext, error)) func(HandlerContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx HandlerContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func chainCompleteHooks(a, b func(CompletionContext)) func(CompletionContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx CompletionContext) {
		a(ctx)
		b(ctx)
	}
}

// LoggingHooks reports dispatch outcomes as structured diagnostics.
func LoggingHooks(logger logging.ServiceLogger) Hooks {
	return Hooks{
		OnVeto: func(ctx VetoContext) {
			fields := logging.LogFields{
				"event_id":   ctx.Envelope.ID,
				"event_type": ctx.Envelope.Type,
				"guard":      ctx.Guard,
				"reason":     ctx.Reason,
			}
			if ctx.Fault != nil {
				logger.Error("Guard failed", ctx.Fault, fields)
				return
			}
			logger.Debug("Event vetoed", fields)
		},
		OnHandlerError: func(ctx HandlerContext, err error) {
			logger.Error("Handler failed", err, logging.LogFields{
				"event_id":    ctx.Envelope.ID,
				"event_type":  ctx.Envelope.Type,
				"handler":     ctx.Handler,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
		OnComplete: func(ctx CompletionContext) {
			logger.Debug("Event dispatched", logging.LogFields{
				"event_id":    ctx.Envelope.ID,
				"event_type":  ctx.Envelope.Type,
				"handlers":    ctx.Handlers,
				"failures":    ctx.Failures,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
	}
}
