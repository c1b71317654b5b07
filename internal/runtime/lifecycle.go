package runtime

import (
	"context"

	"github.com/drblury/botcore/internal/runtime/event"
	loggingpkg "github.com/drblury/botcore/internal/runtime/logging"
	"github.com/drblury/botcore/internal/runtime/state"
)

const (
	guildKeyPrefix = "guild:"
	userKeyPrefix  = "user:"
)

type guildRecord struct {
	Deleted bool `json:"deleted"`
}

type userRecord struct {
	Username  string `json:"username"`
	FirstSeen int64  `json:"firstSeen"`
}

// Lifecycle tracks guilds and users in the state store and logs the guild
// and newUser categories. Guild joins, leaves and re-joins are told apart by
// the persisted record; a user is new the first time it triggers a command.
func Lifecycle() Module {
	return func(r *Runtime) error {
		handlers := []struct {
			eventType string
			name      string
			fn        func(context.Context, *event.Envelope) error
		}{
			{event.TypeGuildCreate, "guild_join", r.onGuildCreate},
			{event.TypeGuildDelete, "guild_leave", r.onGuildDelete},
			{event.TypeInteractionCreate, "track_user", r.trackUser},
			{event.TypeMessageCreate, "track_user", r.trackUser},
		}
		for _, h := range handlers {
			if err := r.Handle(h.eventType, h.name, h.fn); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *Runtime) onGuildCreate(ctx context.Context, env *event.Envelope) error {
	if env.GuildID == "" {
		return nil
	}
	key := guildKeyPrefix + env.GuildID
	rec, found, err := state.GetAs[guildRecord](ctx, r.Store(), key)
	if err != nil {
		return err
	}
	if found && !rec.Deleted {
		return nil
	}
	if err := r.Store().Set(ctx, key, guildRecord{}); err != nil {
		return err
	}
	kind := loggingpkg.GuildNew
	if found {
		kind = loggingpkg.GuildRecover
	}
	r.logger.LogGuild(kind, env.GuildID)
	return nil
}

func (r *Runtime) onGuildDelete(ctx context.Context, env *event.Envelope) error {
	if env.GuildID == "" {
		return nil
	}
	if err := r.Store().Set(ctx, guildKeyPrefix+env.GuildID, guildRecord{Deleted: true}); err != nil {
		return err
	}
	r.logger.LogGuild(loggingpkg.GuildDelete, env.GuildID)
	return nil
}

func (r *Runtime) trackUser(ctx context.Context, env *event.Envelope) error {
	if env.Actor == nil || env.Actor.ID == "" {
		return nil
	}
	if env.Type == event.TypeMessageCreate && env.Subtype != event.SubtypeSimpleCommand {
		return nil
	}
	key := userKeyPrefix + env.Actor.ID
	_, found, err := r.Store().Get(ctx, key)
	if err != nil || found {
		return err
	}
	if err := r.Store().Set(ctx, key, userRecord{Username: env.Actor.Username, FirstSeen: env.ReceivedAt.UnixMilli()}); err != nil {
		return err
	}
	r.logger.LogNewUser(*env.Actor)
	return nil
}
