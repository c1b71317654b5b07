package event

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsMonotonic(t *testing.T) {
	first := NewID()
	second := NewID()

	require.Len(t, first, 26)
	_, err := ulid.ParseStrict(first)
	require.NoError(t, err)
	assert.Less(t, first, second)
}

func TestNewEnvelope(t *testing.T) {
	env := New(TypeInteractionCreate)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, TypeInteractionCreate, env.Type)
	assert.WithinDuration(t, time.Now(), env.ReceivedAt, time.Second)
	assert.Empty(t, env.ActorID())
	assert.Empty(t, env.ChannelID())
}

func TestDecodeNormalizesMissingFields(t *testing.T) {
	env, err := Decode([]byte(`{"type":"messageCreate","content":"!ping","actor":{"id":"1","username":"ana","discriminator":"0001"},"channel":{"id":"c1","name":"general","kind":"text"},"payload":{"raw":true}}`))
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.False(t, env.ReceivedAt.IsZero())
	assert.Equal(t, "1", env.ActorID())
	assert.Equal(t, "c1", env.ChannelID())
	assert.Equal(t, "ana#0001", env.Actor.Tag())
	assert.JSONEq(t, `{"raw":true}`, string(env.Payload))
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"action":"ping"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing type")
}

func TestEncodeDecodeKeepsIdentity(t *testing.T) {
	env := New(TypeGuildCreate)
	env.GuildID = "g1"

	data, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, "g1", decoded.GuildID)
	assert.True(t, env.ReceivedAt.Equal(decoded.ReceivedAt))
}

func TestChannelKindIsText(t *testing.T) {
	assert.True(t, ChannelText.IsText())
	assert.True(t, ChannelThread.IsText())
	assert.False(t, ChannelVoice.IsText())
	assert.False(t, ChannelDM.IsText())
	assert.False(t, ChannelUnknown.IsText())
}

func TestActorTagWithoutDiscriminator(t *testing.T) {
	assert.Equal(t, "ana", Actor{Username: "ana"}.Tag())
}
