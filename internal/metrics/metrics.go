package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paiwantalk"

// Metrics owns a private registry so tests and multiple binaries don't collide
// on the global one. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	backendAttempts *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	lookups         *prometheus.CounterVec
	intents         *prometheus.CounterVec
	gapsReported    *prometheus.CounterVec
	gapsRecorded    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		// Labels: op (create_completion, list_models), backend, outcome.
		backendAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Backend attempts by outcome.",
		}, []string{"op", "backend", "outcome"}),
		backendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of a single backend attempt.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"op", "backend"}),
		// Labels: selector (source key or all), result (hit, exact, fuzzy, miss).
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lexicon",
			Name:      "lookups_total",
			Help:      "Dictionary lookups by selector and result.",
		}, []string{"selector", "result"}),
		intents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "intents_total",
			Help:      "Classified chat intents.",
		}, []string{"intent"}),
		gapsReported: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gaps",
			Name:      "reported_total",
			Help:      "Unresolved tokens reported for review.",
		}, []string{"status"}),
		gapsRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gaps",
			Name:      "recorded_total",
			Help:      "Gap reports persisted by the worker.",
		}),
	}
}

func (m *Metrics) ObserveAttempt(op, backend, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.backendAttempts.WithLabelValues(op, backend, outcome).Inc()
	m.backendDuration.WithLabelValues(op, backend).Observe(elapsed.Seconds())
}

// ObserveLookup records a resolution. result is "exact", "fuzzy" or "miss".
func (m *Metrics) ObserveLookup(selector, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(selector, result).Inc()
}

func (m *Metrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent).Inc()
}

func (m *Metrics) GapReported(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.gapsReported.WithLabelValues(status).Inc()
}

func (m *Metrics) GapRecorded() {
	if m == nil {
		return
	}
	m.gapsRecorded.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
