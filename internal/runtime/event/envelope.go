// Package event defines the envelope every inbound platform event is wrapped
// in before it reaches guards, handlers and loggers.
package event

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/oklog/ulid/v2"
)

// Platform event names used across the runtime.
const (
	TypeInteractionCreate = "interactionCreate"
	TypeMessageCreate     = "messageCreate"
	TypeGuildCreate       = "guildCreate"
	TypeGuildDelete       = "guildDelete"
	TypeGuildMemberAdd    = "guildMemberAdd"
	TypeReady             = "ready"
)

// SubtypeSimpleCommand marks a message recognised as a prefixed command.
const SubtypeSimpleCommand = "SIMPLE_COMMAND_MESSAGE"

// ChannelKind classifies the channel an event originated from.
type ChannelKind string

const (
	ChannelText     ChannelKind = "text"
	ChannelThread   ChannelKind = "thread"
	ChannelVoice    ChannelKind = "voice"
	ChannelCategory ChannelKind = "category"
	ChannelDM       ChannelKind = "dm"
	ChannelUnknown  ChannelKind = "unknown"
)

// IsText reports whether plain text can be sent to channels of this kind.
func (k ChannelKind) IsText() bool {
	return k == ChannelText || k == ChannelThread
}

// Actor is the account that caused an event.
type Actor struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Tag renders the actor the way platform users recognise it.
func (a Actor) Tag() string {
	if a.Discriminator == "" {
		return a.Username
	}
	return a.Username + "#" + a.Discriminator
}

// Channel is the channel an event originated from.
type Channel struct {
	ID   string      `json:"id"`
	Name string      `json:"name,omitempty"`
	Kind ChannelKind `json:"kind,omitempty"`
}

// Envelope wraps one inbound event with the metadata guards and loggers use.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Subtype    string          `json:"subtype,omitempty"`
	Action     string          `json:"action,omitempty"`
	Actor      *Actor          `json:"actor,omitempty"`
	Channel    *Channel        `json:"channel,omitempty"`
	GuildID    string          `json:"guildId,omitempty"`
	Content    string          `json:"content,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// New returns an envelope of the given type with a fresh ID and receive time.
func New(eventType string) *Envelope {
	return &Envelope{
		ID:         NewID(),
		Type:       eventType,
		ReceivedAt: time.Now().UTC(),
	}
}

// ActorID returns the actor id or an empty string.
func (e *Envelope) ActorID() string {
	if e.Actor == nil {
		return ""
	}
	return e.Actor.ID
}

// ChannelID returns the channel id or an empty string.
func (e *Envelope) ChannelID() string {
	if e.Channel == nil {
		return ""
	}
	return e.Channel.ID
}

// Normalize fills the ID and receive time when the producer left them empty.
func (e *Envelope) Normalize() {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
}

// Encode serialises the envelope for the event bus.
func Encode(e *Envelope) ([]byte, error) {
	return sonic.ConfigStd.Marshal(e)
}

// Decode parses an envelope produced by Encode or by the gateway.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := sonic.ConfigStd.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	e.Normalize()
	return &e, nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-sortable ULID encoded as a 26-character string.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
