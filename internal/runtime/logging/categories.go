package logging

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	configpkg "github.com/drblury/botcore/internal/runtime/config"
	"github.com/drblury/botcore/internal/runtime/event"
)

// GuildEvent is the kind of guild lifecycle change being logged.
type GuildEvent string

const (
	GuildNew     GuildEvent = "NEW_GUILD"
	GuildDelete  GuildEvent = "DELETE_GUILD"
	GuildRecover GuildEvent = "RECOVER_GUILD"
)

func (g GuildEvent) describe() string {
	switch g {
	case GuildNew:
		return "has been added to the db"
	case GuildDelete:
		return "has been deleted"
	case GuildRecover:
		return "has been recovered"
	default:
		return ""
	}
}

// LogAction records a permitted event. Simple commands go to the
// simpleCommand category, everything else to interaction.
func (l *Logger) LogAction(env *event.Envelope) {
	if env.Subtype == event.SubtypeSimpleCommand {
		l.LogSimpleCommand(env)
		return
	}
	l.LogInteraction(env)
}

// LogInteraction logs an interaction unless its subtype is excluded.
func (l *Logger) LogInteraction(env *event.Envelope) {
	subtype := ConstantCase(env.Subtype)
	if subtype == "" {
		subtype = ConstantCase(env.Type)
	}
	l.logEnvelope(l.categories.Interaction, subtype, env)
}

// LogSimpleCommand logs a prefixed message command.
func (l *Logger) LogSimpleCommand(env *event.Envelope) {
	l.logEnvelope(l.categories.SimpleCommand, event.SubtypeSimpleCommand, env)
}

func (l *Logger) logEnvelope(cat configpkg.Category, subtype string, env *event.Envelope) {
	if !cat.Console || cat.Excludes(subtype) {
		return
	}
	l.Log(LevelInfo, formatAction(subtype, env), cat.File, cat.Channel)
}

// LogNewUser logs a user seen for the first time.
func (l *Logger) LogNewUser(actor event.Actor) {
	cat := l.categories.NewUser
	if !cat.Console || cat.Excludes("NEW_USER") {
		return
	}
	l.Log(LevelInfo, "(NEW_USER) "+actor.Tag()+" ("+actor.ID+") has been added to the db", cat.File, cat.Channel)
}

// LogGuild logs a guild being added, deleted or recovered.
func (l *Logger) LogGuild(kind GuildEvent, guildID string) {
	cat := l.categories.Guild
	if !cat.Console || cat.Excludes(string(kind)) {
		return
	}
	message := "(" + string(kind) + ") " + guildID
	if desc := kind.describe(); desc != "" {
		message += " " + desc
	}
	l.Log(LevelInfo, message, cat.File, cat.Channel)
}

// formatAction renders `(SUBTYPE) "action" in #channel by user#0001`.
// The channel part only appears for text-capable channels and the user part
// only when the event has an actor.
func formatAction(subtype string, env *event.Envelope) string {
	var b strings.Builder
	b.WriteString("(" + subtype + ") \"" + env.Action + "\"")
	if ch := env.Channel; ch != nil && ch.Kind.IsText() && ch.Name != "" {
		b.WriteString(" in #" + ch.Name)
	}
	if env.Actor != nil {
		b.WriteString(" by " + env.Actor.Tag())
	}
	return b.String()
}

// ConstantCase turns "chatInputCommand", "select-menu" or "Button" into
// CHAT_INPUT_COMMAND, SELECT_MENU and BUTTON.
func ConstantCase(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var b strings.Builder
	lastUnderscore := true

	for i, r := range runes {
		if r == ' ' || r == '-' || r == '_' || r == '.' {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if unicode.IsUpper(r) && i > 0 && !lastUnderscore {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
		lastUnderscore = false
	}

	// Casers keep state, so one per call.
	return cases.Upper(language.Und).String(strings.TrimSuffix(b.String(), "_"))
}
