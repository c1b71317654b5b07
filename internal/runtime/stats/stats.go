// Package stats counts what the runtime does and exposes it to Prometheus.
package stats

import (
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/botcore/internal/runtime/dispatch"
	"github.com/drblury/botcore/internal/runtime/event"
)

// Stats owns the runtime counters.
type Stats struct {
	mu sync.Mutex

	interactions    *prometheus.CounterVec
	guardVetoes     *prometheus.CounterVec
	guardFaults     *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	sinkFailures    *prometheus.CounterVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	registered bool
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botcore",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// New creates the counters. A nil registerer uses a fresh registry; when
// registerer also gathers (a *prometheus.Registry does) Handler serves it.
func New(registerer prometheus.Registerer) *Stats {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	return &Stats{
		interactions:    newCounterVec("interactions_total", "Permitted events by type and subtype", "type", "subtype"),
		guardVetoes:     newCounterVec("guard_vetoes_total", "Events stopped by a guard", "guard"),
		guardFaults:     newCounterVec("guard_faults_total", "Guards that failed while evaluating an event", "guard"),
		handlerFailures: newCounterVec("handler_failures_total", "Handlers that returned an error or panicked", "event_type", "handler"),
		sinkFailures:    newCounterVec("log_sink_failures_total", "Swallowed log sink failures", "sink"),
		registerer:      registerer,
		gatherer:        gatherer,
	}
}

// Register registers the collectors. Safe to call multiple times.
func (s *Stats) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		return nil
	}

	for _, c := range []prometheus.Collector{
		s.interactions,
		s.guardVetoes,
		s.guardFaults,
		s.handlerFailures,
		s.sinkFailures,
	} {
		if err := s.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	s.registered = true
	return nil
}

// Record counts one permitted event.
func (s *Stats) Record(env *event.Envelope) {
	s.interactions.WithLabelValues(env.Type, env.Subtype).Inc()
}

// SinkFailure counts one swallowed log sink failure. It matches
// logging.SinkFailureFunc.
func (s *Stats) SinkFailure(sink string, _ error) {
	s.sinkFailures.WithLabelValues(sink).Inc()
}

// Hooks returns dispatch hooks that feed the veto and failure counters.
func (s *Stats) Hooks() dispatch.Hooks {
	return dispatch.Hooks{
		OnVeto: func(ctx dispatch.VetoContext) {
			if ctx.Fault != nil {
				s.guardFaults.WithLabelValues(ctx.Guard).Inc()
				return
			}
			s.guardVetoes.WithLabelValues(ctx.Guard).Inc()
		},
		OnHandlerError: func(ctx dispatch.HandlerContext, _ error) {
			s.handlerFailures.WithLabelValues(ctx.Envelope.Type, ctx.Handler).Inc()
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}
