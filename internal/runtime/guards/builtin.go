package guards

import (
	"context"
	"slices"

	"github.com/drblury/botcore/internal/runtime/event"
)

const (
	NotBotName      = "not_bot"
	MaintenanceName = "maintenance"
	GuildScopeName  = "test_guild"
)

// NotBot vetoes events authored by bots, including this one.
func NotBot() Guard {
	return New(NotBotName, func(_ context.Context, env *event.Envelope) (Verdict, error) {
		if env.Actor != nil && env.Actor.Bot {
			return Veto("actor is a bot"), nil
		}
		return Permit(), nil
	})
}

// MaintenanceReader reports the persisted maintenance flag.
type MaintenanceReader interface {
	IsInMaintenance(ctx context.Context) (bool, error)
}

// Bypass lists actors and actions that pass while maintenance is on.
type Bypass struct {
	ActorIDs []string
	Actions  []string
}

func (b Bypass) allows(env *event.Envelope) bool {
	if id := env.ActorID(); id != "" && slices.Contains(b.ActorIDs, id) {
		return true
	}
	return env.Action != "" && slices.Contains(b.Actions, env.Action)
}

// Maintenance vetoes everything outside bypass while the flag is set. A read
// failure is returned as an error, which the chain turns into a veto.
func Maintenance(reader MaintenanceReader, bypass Bypass) Guard {
	return New(MaintenanceName, func(ctx context.Context, env *event.Envelope) (Verdict, error) {
		on, err := reader.IsInMaintenance(ctx)
		if err != nil {
			return Verdict{}, err
		}
		if on && !bypass.allows(env) {
			return Veto("maintenance mode is on"), nil
		}
		return Permit(), nil
	})
}

// GuildScope vetoes guild events from any guild other than guildID. Direct
// messages carry no guild and pass.
func GuildScope(guildID string) Guard {
	return New(GuildScopeName, func(_ context.Context, env *event.Envelope) (Verdict, error) {
		if env.GuildID != "" && env.GuildID != guildID {
			return Veto("guild is outside the development scope"), nil
		}
		return Permit(), nil
	})
}
