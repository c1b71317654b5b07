package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	configpkg "github.com/drblury/botcore/internal/runtime/config"
	"github.com/drblury/botcore/internal/runtime/dispatch"
	errspkg "github.com/drblury/botcore/internal/runtime/errors"
	"github.com/drblury/botcore/internal/runtime/event"
	"github.com/drblury/botcore/internal/runtime/gateway"
	"github.com/drblury/botcore/internal/runtime/guards"
	loggingpkg "github.com/drblury/botcore/internal/runtime/logging"
	"github.com/drblury/botcore/internal/runtime/state"
	"github.com/drblury/botcore/internal/runtime/stats"
	transportpkg "github.com/drblury/botcore/internal/runtime/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// Module registers handlers (and optionally guards) on the runtime. Modules
// run during Start, after the store is bound and before defaults are seeded.
type Module func(r *Runtime) error

// Connector opens the platform connection and feeds every inbound event to
// publish until ctx is cancelled.
type Connector interface {
	Connect(ctx context.Context, token string, publish gateway.PublishFunc) error
}

// Dependencies holds the optional collaborators of a Runtime. Leave fields
// nil to get the defaults built from the configuration.
type Dependencies struct {
	Store                     state.Store
	Modules                   []Module
	Guards                    []guards.Guard // Appended after the default guards.
	DisableDefaultGuards      bool           // Skips not_bot and maintenance when true.
	Middlewares               []MiddlewareRegistration
	DisableDefaultMiddlewares bool
	TransportFactory          transportpkg.Factory
	Connector                 Connector
	Registerer                prometheus.Registerer
	Hooks                     dispatch.Hooks
	// Stdout and Stderr receive the console sink. Default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Runtime is the composition root: it owns the store, the loggers, the
// dispatcher and the event bus, and starts them in a fixed order.
type Runtime struct {
	Conf *configpkg.Config
	Log  loggingpkg.ServiceLogger

	logger     *loggingpkg.Logger
	stats      *stats.Stats
	registerer prometheus.Registerer
	dispatcher *dispatch.Dispatcher
	connector  Connector
	factory    transportpkg.Factory
	deps       Dependencies

	storeMu   sync.RWMutex
	store     state.Store
	ownsStore bool

	busMu     sync.RWMutex
	publisher message.Publisher
	router    *message.Router

	startMu sync.Mutex
	started bool
}

// NewRuntime wires a Runtime. Register handlers on it, or pass modules in
// deps, before calling Start.
func NewRuntime(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*Runtime, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	st := stats.New(registerer)

	logger := loggingpkg.NewLogger(loggingpkg.Options{
		Dir:           conf.Logs.Dir,
		Stdout:        deps.Stdout,
		Stderr:        deps.Stderr,
		Categories:    conf.Logs,
		OnSinkFailure: st.SinkFailure,
	})

	r := &Runtime{
		Conf:       conf,
		Log:        log,
		logger:     logger,
		stats:      st,
		registerer: registerer,
		connector:  deps.Connector,
		factory:    deps.TransportFactory,
		deps:       deps,
		store:      deps.Store,
	}

	if r.connector == nil {
		r.connector = gateway.New(gateway.Options{URL: conf.GatewayURL, Logger: log})
	}
	if sender, ok := r.connector.(loggingpkg.ChannelSender); ok {
		logger.SetChannelSender(sender)
	}
	if r.factory == nil {
		r.factory = transportpkg.DefaultFactory()
	}

	var defaults []guards.Guard
	if !deps.DisableDefaultGuards {
		defaults = []guards.Guard{
			guards.NotBot(),
			guards.Maintenance(r, guards.Bypass{
				ActorIDs: conf.Maintenance.BypassActorIDs,
				Actions:  conf.Maintenance.BypassActions,
			}),
		}
		if conf.IsDevelopment() {
			defaults = append(defaults, guards.GuildScope(conf.TestGuildID))
		}
	}
	chain, err := guards.NewChain(append(defaults, deps.Guards...)...)
	if err != nil {
		return nil, err
	}

	hooks := st.Hooks().Merge(dispatch.LoggingHooks(log)).Merge(deps.Hooks)
	r.dispatcher, err = dispatch.New(dispatch.Options{
		Chain:  chain,
		Stats:  st,
		Logger: logger,
		Hooks:  hooks,
	})
	if err != nil {
		return nil, err
	}

	log.Info("Creating bot runtime", loggingpkg.LogFields{
		"event_bus": conf.EventBus,
		"guards":    chain.Names(),
		"config":    conf,
	})
	return r, nil
}

// Handle registers a handler for eventType.
func (r *Runtime) Handle(eventType, name string, handler dispatch.HandlerFunc) error {
	return r.dispatcher.Register(eventType, name, handler)
}

// Use appends guards to the chain.
func (r *Runtime) Use(gs ...guards.Guard) error {
	return r.dispatcher.Chain().Use(gs...)
}

// Store returns the bound state store. It is nil until Start binds it unless
// one was injected.
func (r *Runtime) Store() state.Store {
	r.storeMu.RLock()
	defer r.storeMu.RUnlock()
	return r.store
}

// Logger returns the operational sink logger.
func (r *Runtime) Logger() *loggingpkg.Logger { return r.logger }

// Dispatcher returns the event dispatcher.
func (r *Runtime) Dispatcher() *dispatch.Dispatcher { return r.dispatcher }

// Stats returns the runtime counters.
func (r *Runtime) Stats() *stats.Stats { return r.stats }

// Start brings the runtime up and blocks until ctx is cancelled or a
// component fails. The order is fixed: bind the store, run modules, seed
// defaults, check the token, start the event bus, then connect. A missing
// token returns a fatal error before anything is connected.
func (r *Runtime) Start(ctx context.Context) error {
	r.startMu.Lock()
	if r.started {
		r.startMu.Unlock()
		return errspkg.ErrAlreadyStarted
	}
	r.started = true
	r.startMu.Unlock()

	defer r.shutdown()

	if err := r.bindStore(ctx); err != nil {
		return err
	}
	if err := r.runModules(); err != nil {
		return err
	}
	if err := r.seed(ctx); err != nil {
		return err
	}
	if r.Conf.Token == "" {
		r.logger.Error(errspkg.ErrTokenRequired.Error())
		return errspkg.NewFatalError(errspkg.ErrTokenRequired)
	}

	if err := r.stats.Register(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	tr, err := r.factory.Build(ctx, r.Conf, loggingpkg.NewWatermillAdapter(r.Log))
	if err != nil {
		return fmt.Errorf("build event bus: %w", err)
	}
	defer func() {
		if err := tr.Close(); err != nil {
			r.Log.Error("Closing event bus failed", err, nil)
		}
	}()
	if caps := r.factory.Capabilities(r.Conf.EventBus); !caps.SupportsOrdering {
		r.Log.Info("Event bus does not guarantee ordering", loggingpkg.LogFields{"event_bus": caps.Name})
	}

	router, err := r.newRouter(tr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := routerRun(router, gctx); err != nil {
			return err
		}
		// The gateway must not outlive the router it publishes into.
		if gctx.Err() == nil {
			return errspkg.ErrBusClosed
		}
		return nil
	})

	select {
	case <-router.Running():
	case <-gctx.Done():
		return g.Wait()
	}

	if r.Conf.MetricsEnabled {
		r.serveMetrics(gctx, g)
	}

	g.Go(func() error {
		err := r.connector.Connect(gctx, r.Conf.Token, r.Publish)
		if err == nil && gctx.Err() == nil {
			return errspkg.ErrGatewayClosed
		}
		return err
	})

	err = g.Wait()
	if ctx.Err() != nil && !errspkg.IsFatal(err) {
		return nil
	}
	return err
}

func (r *Runtime) bindStore(ctx context.Context) error {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if r.store != nil {
		return nil
	}
	store, err := state.Open(ctx, r.Conf.State)
	if err != nil {
		return err
	}
	r.store = store
	r.ownsStore = true
	return nil
}

func (r *Runtime) runModules() error {
	for i, module := range r.deps.Modules {
		if module == nil {
			continue
		}
		if err := module(r); err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}

// seed writes the default entries with Add, so values toggled by an operator
// survive a restart.
func (r *Runtime) seed(ctx context.Context) error {
	store := r.Store()
	defaults := []struct {
		key   string
		value any
	}{
		{state.KeyMaintenance, false},
		{state.KeyLastMaintenance, nil},
		{state.KeyLastStartup, time.Now().UnixMilli()},
	}
	for _, d := range defaults {
		if err := store.Add(ctx, d.key, d.value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) serveMetrics(ctx context.Context, g *errgroup.Group) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.stats.Handler())
	mux.HandleFunc("/api/status", r.handleGetStatus)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(r.Conf.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.Log.Info("Starting metrics server", loggingpkg.LogFields{"address": srv.Addr})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func (r *Runtime) shutdown() {
	r.logger.Wait()

	r.busMu.Lock()
	r.publisher = nil
	r.router = nil
	r.busMu.Unlock()

	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if r.ownsStore && r.store != nil {
		if err := r.store.Close(); err != nil {
			r.Log.Error("Closing state store failed", err, nil)
		}
		r.store = nil
		r.ownsStore = false
	}
}

// IsInMaintenance reports the persisted maintenance flag. A missing or null
// value means the bot is not in maintenance; other values count by their
// truthiness, so a flag written as 1 or "yes" by hand still switches it on.
func (r *Runtime) IsInMaintenance(ctx context.Context) (bool, error) {
	store := r.Store()
	if store == nil {
		return false, errspkg.ErrStoreRequired
	}
	value, _, err := state.GetAs[any](ctx, store, state.KeyMaintenance)
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case string:
		return v != ""
	default:
		return true
	}
}

// SetMaintenance overwrites the maintenance flag. It is the only mutation
// path for the flag read by the maintenance guard.
func (r *Runtime) SetMaintenance(ctx context.Context, on bool) error {
	store := r.Store()
	if store == nil {
		return errspkg.ErrStoreRequired
	}
	return store.Set(ctx, state.KeyMaintenance, on)
}

// SendText sends text to a channel through the connector.
func (r *Runtime) SendText(ctx context.Context, channelID, text string) error {
	sender, ok := r.connector.(loggingpkg.ChannelSender)
	if !ok {
		return errspkg.ErrGatewayClosed
	}
	return sender.SendText(ctx, channelID, text)
}

// Dispatch runs env through the guard chain and handlers directly, bypassing
// the event bus.
func (r *Runtime) Dispatch(ctx context.Context, env *event.Envelope) dispatch.Outcome {
	r.prepare(env)
	return r.dispatcher.Dispatch(ctx, env)
}
