package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/botcore/internal/runtime/errors"
	"github.com/drblury/botcore/internal/runtime/event"
	loggingpkg "github.com/drblury/botcore/internal/runtime/logging"
	transportpkg "github.com/drblury/botcore/internal/runtime/transport"
)

// Metadata keys set on every bus message.
const (
	MetadataCorrelationID = "correlation_id"
	MetadataEventType     = "event_type"
)

const dispatchHandlerName = "dispatch"

func (r *Runtime) newRouter(tr transportpkg.Transport) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, loggingpkg.NewWatermillAdapter(r.Log))
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	r.busMu.Lock()
	r.router = router
	r.publisher = tr.Publisher
	r.busMu.Unlock()

	var regs []MiddlewareRegistration
	if !r.deps.DisableDefaultMiddlewares {
		regs = DefaultMiddlewares()
	}
	regs = append(regs, r.deps.Middlewares...)
	for _, reg := range regs {
		if err := r.RegisterMiddleware(reg); err != nil {
			return nil, fmt.Errorf("register %s middleware: %w", reg.Name, err)
		}
	}

	router.AddNoPublisherHandler(dispatchHandlerName, r.Conf.EventTopic, tr.Subscriber, r.handleEvent)
	return router, nil
}

func (r *Runtime) currentRouter() *message.Router {
	r.busMu.RLock()
	defer r.busMu.RUnlock()
	return r.router
}

// Publish puts env on the event bus. On the channel bus it returns once the
// dispatcher has finished with the event, which keeps delivery in order.
func (r *Runtime) Publish(ctx context.Context, env *event.Envelope) error {
	r.busMu.RLock()
	pub := r.publisher
	r.busMu.RUnlock()
	if pub == nil {
		return errspkg.ErrBusClosed
	}

	env.Normalize()
	payload, err := event.Encode(env)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", env.ID, err)
	}
	msg := message.NewMessage(env.ID, payload)
	msg.Metadata.Set(MetadataEventType, env.Type)
	msg.SetContext(ctx)
	return pub.Publish(r.Conf.EventTopic, msg)
}

// handleEvent never returns an error: a failed event is logged and acked,
// never redelivered.
func (r *Runtime) handleEvent(msg *message.Message) error {
	env, err := event.Decode(msg.Payload)
	if err != nil {
		r.Log.Error("Dropping undecodable event", err, loggingpkg.LogFields{"message_uuid": msg.UUID})
		return nil
	}
	r.Dispatch(msg.Context(), env)
	return nil
}

// prepare classifies env before it reaches the guards.
func (r *Runtime) prepare(env *event.Envelope) {
	env.Normalize()
	if name, ok := SimpleCommand(r.Conf.SimpleCommandPrefix, env); ok {
		env.Subtype = event.SubtypeSimpleCommand
		env.Action = name
	}
}

// SimpleCommand reports whether env is a message whose content starts with
// prefix, and returns the command name that follows it.
func SimpleCommand(prefix string, env *event.Envelope) (string, bool) {
	if prefix == "" || env.Type != event.TypeMessageCreate {
		return "", false
	}
	if env.Subtype != "" && env.Subtype != event.SubtypeSimpleCommand {
		return "", false
	}
	rest, ok := strings.CutPrefix(env.Content, prefix)
	if !ok {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}
