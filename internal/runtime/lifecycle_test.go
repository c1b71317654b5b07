package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/botcore/internal/runtime/event"
	"github.com/drblury/botcore/internal/runtime/state"
)

func TestLifecycleGuilds(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	rt, out := newTestRuntime(t, testConfig(t), Dependencies{Store: store})
	require.NoError(t, Lifecycle()(rt))

	guild := func(typ string) *event.Envelope {
		env := event.New(typ)
		env.GuildID = "g1"
		return env
	}

	rt.Dispatch(ctx, guild(event.TypeGuildCreate))
	rt.Dispatch(ctx, guild(event.TypeGuildCreate))
	rt.Dispatch(ctx, guild(event.TypeGuildDelete))
	rt.Dispatch(ctx, guild(event.TypeGuildCreate))

	logs := out.stdout.String()
	assert.Equal(t, 1, strings.Count(logs, "(NEW_GUILD) g1 has been added to the db"))
	assert.Equal(t, 1, strings.Count(logs, "(DELETE_GUILD) g1 has been deleted"))
	assert.Equal(t, 1, strings.Count(logs, "(RECOVER_GUILD) g1 has been recovered"))

	rec, found, err := state.GetAs[guildRecord](ctx, store, guildKeyPrefix+"g1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, rec.Deleted)
}

func TestLifecycleNewUsers(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	rt, out := newTestRuntime(t, testConfig(t), Dependencies{Store: store})
	require.NoError(t, Lifecycle()(rt))

	command := event.New(event.TypeInteractionCreate)
	command.Subtype = "CHAT_INPUT_COMMAND"
	command.Action = "ping"
	command.Actor = user("u1")
	rt.Dispatch(ctx, command)

	again := event.New(event.TypeMessageCreate)
	again.Content = "!ping"
	again.Actor = user("u1")
	rt.Dispatch(ctx, again)

	chatter := event.New(event.TypeMessageCreate)
	chatter.Content = "just talking"
	chatter.Actor = user("u2")
	rt.Dispatch(ctx, chatter)

	logs := out.stdout.String()
	assert.Equal(t, 1, strings.Count(logs, "(NEW_USER) ana#0001 (u1) has been added to the db"))
	assert.NotContains(t, logs, "(u2)", "plain messages do not register users")

	_, found, err := store.Get(ctx, userKeyPrefix+"u1")
	require.NoError(t, err)
	assert.True(t, found)
}
