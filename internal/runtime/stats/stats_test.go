package stats

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/botcore/internal/runtime/dispatch"
	"github.com/drblury/botcore/internal/runtime/event"
)

func TestRecordCountsByTypeAndSubtype(t *testing.T) {
	s := New(prometheus.NewRegistry())
	require.NoError(t, s.Register())

	env := event.New(event.TypeInteractionCreate)
	env.Subtype = "CHAT_INPUT_COMMAND"
	s.Record(env)
	s.Record(env)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.interactions.WithLabelValues(event.TypeInteractionCreate, "CHAT_INPUT_COMMAND")))
}

func TestHooksSplitVetoesAndFaults(t *testing.T) {
	s := New(nil)
	hooks := s.Hooks()
	env := event.New(event.TypeMessageCreate)

	hooks.OnVeto(dispatch.VetoContext{Envelope: env, Guard: "maintenance"})
	hooks.OnVeto(dispatch.VetoContext{Envelope: env, Guard: "custom", Fault: errors.New("boom")})
	hooks.OnHandlerError(dispatch.HandlerContext{Envelope: env, Handler: "ping"}, errors.New("bad"))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.guardVetoes.WithLabelValues("maintenance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.guardFaults.WithLabelValues("custom")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.guardVetoes.WithLabelValues("custom")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.handlerFailures.WithLabelValues(event.TypeMessageCreate, "ping")))
}

func TestSinkFailure(t *testing.T) {
	s := New(nil)
	s.SinkFailure("channel", errors.New("not found"))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.sinkFailures.WithLabelValues("channel")))
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(reg)
	require.NoError(t, s.Register())
	require.NoError(t, s.Register())

	// A second instance on the same registry reuses the existing collectors.
	require.NoError(t, New(reg).Register())
}

func TestHandlerServesMetrics(t *testing.T) {
	s := New(prometheus.NewRegistry())
	require.NoError(t, s.Register())
	s.Record(event.New(event.TypeReady))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `botcore_interactions_total{subtype="",type="ready"} 1`), rec.Body.String())
}
