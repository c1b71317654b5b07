package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/botcore/internal/runtime/config"
	"github.com/drblury/botcore/internal/runtime/dispatch"
	errspkg "github.com/drblury/botcore/internal/runtime/errors"
	"github.com/drblury/botcore/internal/runtime/event"
	"github.com/drblury/botcore/internal/runtime/gateway"
	loggingpkg "github.com/drblury/botcore/internal/runtime/logging"
	"github.com/drblury/botcore/internal/runtime/state"
)

type fakeConnector struct {
	mu        sync.Mutex
	calls     int
	token     string
	onConnect func(ctx context.Context, publish gateway.PublishFunc) error
}

func (f *fakeConnector) Connect(ctx context.Context, token string, publish gateway.PublishFunc) error {
	f.mu.Lock()
	f.calls++
	f.token = token
	onConnect := f.onConnect
	f.mu.Unlock()

	if onConnect != nil {
		return onConnect(ctx, publish)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConnector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig(t *testing.T) *configpkg.Config {
	t.Helper()
	conf := configpkg.Default()
	conf.Token = "token"
	conf.State.Backend = "memory"
	conf.Logs.Dir = t.TempDir()
	return &conf
}

type consoles struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newTestRuntime(t *testing.T, conf *configpkg.Config, deps Dependencies) (*Runtime, *consoles) {
	t.Helper()
	out := &consoles{}
	deps.Stdout = &out.stdout
	deps.Stderr = &out.stderr
	if deps.Connector == nil {
		deps.Connector = &fakeConnector{}
	}
	rt, err := NewRuntime(conf, loggingpkg.NopServiceLogger(), deps)
	require.NoError(t, err)
	return rt, out
}

func startAsync(ctx context.Context, rt *Runtime) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- rt.Start(ctx) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return")
		return nil
	}
}

func user(id string) *event.Actor {
	return &event.Actor{ID: id, Username: "ana", Discriminator: "0001"}
}

func TestNewRuntimeRequiresConfigAndLogger(t *testing.T) {
	_, err := NewRuntime(nil, loggingpkg.NopServiceLogger(), Dependencies{})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	_, err = NewRuntime(testConfig(t), nil, Dependencies{})
	assert.ErrorIs(t, err, errspkg.ErrLoggerRequired)
}

func TestNewRuntimeDefaults(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), loggingpkg.NopServiceLogger(), Dependencies{})
	require.NoError(t, err)

	_, ok := rt.connector.(*gateway.Client)
	assert.True(t, ok, "the gateway client is the default connector")
	assert.Equal(t, []string{"not_bot", "maintenance"}, rt.Dispatcher().Chain().Names())
	assert.Nil(t, rt.Store(), "the store is bound by Start")
}

func TestDevelopmentScopesEventsToTestGuild(t *testing.T) {
	conf := testConfig(t)
	conf.Environment = "development"
	conf.TestGuildID = "g1"
	rt, _ := newTestRuntime(t, conf, Dependencies{Store: state.NewMemoryStore()})
	assert.Equal(t, []string{"not_bot", "maintenance", "test_guild"}, rt.Dispatcher().Chain().Names())

	var handled []string
	require.NoError(t, rt.Handle(event.TypeInteractionCreate, "record", func(_ context.Context, env *event.Envelope) error {
		handled = append(handled, env.GuildID)
		return nil
	}))
	for _, guildID := range []string{"g1", "g2", ""} {
		env := event.New(event.TypeInteractionCreate)
		env.GuildID = guildID
		rt.Dispatch(context.Background(), env)
	}
	assert.Equal(t, []string{"g1", ""}, handled)

	status, err := rt.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "development", status.Environment)
}

func TestStartWithoutTokenFailsBeforeConnecting(t *testing.T) {
	conf := testConfig(t)
	conf.Token = ""
	store := state.NewMemoryStore()
	connector := &fakeConnector{}
	modulesRan := false

	rt, out := newTestRuntime(t, conf, Dependencies{
		Store:     store,
		Connector: connector,
		Modules: []Module{func(*Runtime) error {
			modulesRan = true
			return nil
		}},
	})

	err := rt.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errspkg.IsFatal(err))
	assert.ErrorIs(t, err, errspkg.ErrTokenRequired)
	assert.Zero(t, connector.callCount())
	assert.True(t, modulesRan)
	assert.Contains(t, out.stderr.String(), "could not find BOT_TOKEN in your environment")

	for _, key := range []string{state.KeyMaintenance, state.KeyLastMaintenance, state.KeyLastStartup} {
		_, found, err := store.Get(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, found, "%s is seeded before the token check", key)
	}

	assert.ErrorIs(t, rt.Start(context.Background()), errspkg.ErrAlreadyStarted)
}

func TestStartKeepsExistingState(t *testing.T) {
	ctx := context.Background()
	conf := testConfig(t)
	conf.Token = ""
	store := state.NewMemoryStore()
	require.NoError(t, store.Set(ctx, state.KeyMaintenance, true))
	require.NoError(t, store.Set(ctx, state.KeyLastStartup, 42))

	rt, _ := newTestRuntime(t, conf, Dependencies{Store: store})
	require.Error(t, rt.Start(ctx))

	on, err := rt.IsInMaintenance(ctx)
	require.NoError(t, err)
	assert.True(t, on, "seeding never overwrites an operator's toggle")

	startup, _, err := state.GetAs[int64](ctx, store, state.KeyLastStartup)
	require.NoError(t, err)
	assert.Equal(t, int64(42), startup)

	lastMaintenance, found, err := store.Get(ctx, state.KeyLastMaintenance)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "null", string(lastMaintenance))
}

func TestStartDispatchesEventsInOrder(t *testing.T) {
	conf := testConfig(t)
	store := state.NewMemoryStore()
	done := make(chan struct{})
	seededBeforeConnect := false

	connector := &fakeConnector{}
	connector.onConnect = func(ctx context.Context, publish gateway.PublishFunc) error {
		_, seededBeforeConnect, _ = store.Get(ctx, state.KeyLastStartup)

		for _, content := range []string{"!ping", "hello", "!echo a b"} {
			env := event.New(event.TypeMessageCreate)
			env.Content = content
			env.Actor = user("u1")
			if err := publish(ctx, env); err != nil {
				return err
			}
		}
		bot := event.New(event.TypeMessageCreate)
		bot.Content = "!ping"
		bot.Actor = &event.Actor{ID: "b1", Username: "robot", Bot: true}
		if err := publish(ctx, bot); err != nil {
			return err
		}
		close(done)
		<-ctx.Done()
		return nil
	}

	var seen []string
	record := func(r *Runtime) error {
		return r.Handle(event.TypeMessageCreate, "record", func(_ context.Context, env *event.Envelope) error {
			seen = append(seen, env.Subtype+"|"+env.Action+"|"+env.Content)
			return nil
		})
	}

	rt, out := newTestRuntime(t, conf, Dependencies{Store: store, Connector: connector, Modules: []Module{record}})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := startAsync(ctx, rt)
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatalf("events were not delivered: %v", waitErr(t, errCh))
	}
	cancel()
	require.NoError(t, waitErr(t, errCh))

	assert.True(t, seededBeforeConnect)
	assert.Equal(t, "token", connector.token)
	assert.Equal(t, []string{
		"SIMPLE_COMMAND_MESSAGE|ping|!ping",
		"||hello",
		"SIMPLE_COMMAND_MESSAGE|echo|!echo a b",
	}, seen, "the bot message is vetoed and the rest arrive in gateway order")
	assert.Equal(t, 1, strings.Count(out.stdout.String(), `(SIMPLE_COMMAND_MESSAGE) "ping" by ana#0001`))
	assert.Same(t, store, rt.Store(), "an injected store stays with its owner")
}

func TestStartReportsGatewayExit(t *testing.T) {
	connector := &fakeConnector{onConnect: func(context.Context, gateway.PublishFunc) error { return nil }}
	rt, _ := newTestRuntime(t, testConfig(t), Dependencies{Connector: connector})
	assert.ErrorIs(t, rt.Start(context.Background()), errspkg.ErrGatewayClosed)

	boom := errors.New("boom")
	connector = &fakeConnector{onConnect: func(context.Context, gateway.PublishFunc) error { return boom }}
	rt, _ = newTestRuntime(t, testConfig(t), Dependencies{Connector: connector})
	assert.ErrorIs(t, rt.Start(context.Background()), boom)
}

func TestStartStopsWhenRouterExits(t *testing.T) {
	connected := make(chan struct{})
	connector := &fakeConnector{onConnect: func(ctx context.Context, _ gateway.PublishFunc) error {
		close(connected)
		<-ctx.Done()
		return nil
	}}
	rt, _ := newTestRuntime(t, testConfig(t), Dependencies{Connector: connector})

	errCh := startAsync(context.Background(), rt)
	select {
	case <-connected:
	case <-time.After(10 * time.Second):
		t.Fatalf("gateway was not connected: %v", waitErr(t, errCh))
	}

	router := rt.currentRouter()
	require.NotNil(t, router)
	require.NoError(t, router.Close())

	assert.ErrorIs(t, waitErr(t, errCh), errspkg.ErrBusClosed)
	assert.ErrorIs(t, rt.Publish(context.Background(), event.New(event.TypeReady)), errspkg.ErrBusClosed)
}

func TestModuleErrorStopsStart(t *testing.T) {
	connector := &fakeConnector{}
	rt, _ := newTestRuntime(t, testConfig(t), Dependencies{
		Connector: connector,
		Modules: []Module{func(r *Runtime) error {
			return r.Handle("", "broken", func(context.Context, *event.Envelope) error { return nil })
		}},
	})

	err := rt.Start(context.Background())
	assert.ErrorIs(t, err, errspkg.ErrEventTypeRequired)
	assert.Zero(t, connector.callCount())
}

func TestPublishBeforeStart(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(t), Dependencies{})
	assert.ErrorIs(t, rt.Publish(context.Background(), event.New(event.TypeReady)), errspkg.ErrBusClosed)
}

func TestMaintenanceFlag(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	rt, _ := newTestRuntime(t, testConfig(t), Dependencies{Store: store})

	on, err := rt.IsInMaintenance(ctx)
	require.NoError(t, err)
	assert.False(t, on, "absent means off")

	require.NoError(t, store.Set(ctx, state.KeyMaintenance, nil))
	on, err = rt.IsInMaintenance(ctx)
	require.NoError(t, err)
	assert.False(t, on, "null means off")

	require.NoError(t, rt.SetMaintenance(ctx, true))
	on, err = rt.IsInMaintenance(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	for _, tc := range []struct {
		value any
		want  bool
	}{
		{1, true},
		{0, false},
		{"yes", true},
		{"", false},
		{map[string]any{}, true},
	} {
		require.NoError(t, store.Set(ctx, state.KeyMaintenance, tc.value))
		on, err = rt.IsInMaintenance(ctx)
		require.NoError(t, err, "value %v", tc.value)
		assert.Equal(t, tc.want, on, "value %v", tc.value)
	}

	unbound, _ := newTestRuntime(t, testConfig(t), Dependencies{})
	_, err = unbound.IsInMaintenance(ctx)
	assert.ErrorIs(t, err, errspkg.ErrStoreRequired)
	assert.ErrorIs(t, unbound.SetMaintenance(ctx, true), errspkg.ErrStoreRequired)
}

func TestMaintenanceGuardsDispatch(t *testing.T) {
	ctx := context.Background()
	conf := testConfig(t)
	conf.Maintenance.BypassActorIDs = []string{"admin"}
	rt, _ := newTestRuntime(t, conf, Dependencies{Store: state.NewMemoryStore()})

	var handled []string
	require.NoError(t, rt.Handle(event.TypeInteractionCreate, "record", func(_ context.Context, env *event.Envelope) error {
		handled = append(handled, env.ActorID())
		return nil
	}))

	interaction := func(actorID string) *event.Envelope {
		env := event.New(event.TypeInteractionCreate)
		env.Subtype = "CHAT_INPUT_COMMAND"
		env.Action = "ping"
		env.Actor = user(actorID)
		return env
	}

	assert.Equal(t, dispatch.OutcomeCompleted, rt.Dispatch(ctx, interaction("u1")))

	require.NoError(t, rt.SetMaintenance(ctx, true))
	assert.Equal(t, dispatch.OutcomeVetoed, rt.Dispatch(ctx, interaction("u1")))
	assert.Equal(t, dispatch.OutcomeCompleted, rt.Dispatch(ctx, interaction("admin")))

	require.NoError(t, rt.SetMaintenance(ctx, false))
	assert.Equal(t, dispatch.OutcomeCompleted, rt.Dispatch(ctx, interaction("u1")))

	assert.Equal(t, []string{"u1", "admin", "u1"}, handled)
}

func TestSimpleCommand(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		typ     string
		content string
		want    string
		ok      bool
	}{
		{"plain", "!", event.TypeMessageCreate, "!ping", "ping", true},
		{"arguments", "!", event.TypeMessageCreate, "!echo hello world", "echo", true},
		{"space after prefix", "!", event.TypeMessageCreate, "! ping", "ping", true},
		{"long prefix", "bot ", event.TypeMessageCreate, "bot help", "help", true},
		{"no prefix", "!", event.TypeMessageCreate, "ping", "", false},
		{"prefix only", "!", event.TypeMessageCreate, "!", "", false},
		{"empty prefix", "", event.TypeMessageCreate, "!ping", "", false},
		{"not a message", "!", event.TypeInteractionCreate, "!ping", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := event.New(tt.typ)
			env.Content = tt.content
			got, ok := SimpleCommand(tt.prefix, env)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
