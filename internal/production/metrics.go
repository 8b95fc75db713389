package production

import (
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/comalice/statechart/internal/core"
)

// Metrics counts interpreter activity. It is a subscriber: pass
// Metrics.Observe to Interpreter.Subscribe. Each Metrics owns its own
// prometheus registry.
type Metrics struct {
	logger   zerolog.Logger
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	active      *prometheus.GaugeVec

	mu      sync.Mutex
	running map[string]bool // by interpreter id
}

// NewMetrics creates and registers the collectors under namespace
// ("statechart" when empty).
func NewMetrics(logger zerolog.Logger, namespace string) *Metrics {
	if namespace == "" {
		namespace = "statechart"
	}
	m := &Metrics{
		logger:   logger.With().Str("component", "metrics").Logger(),
		registry: prometheus.NewRegistry(),
		running:  make(map[string]bool),
	}

	m.events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Events processed, by machine and event type",
		},
		[]string{"machine", "event"},
	)
	m.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Macrosteps that changed the configuration",
		},
		[]string{"machine", "event"},
	)
	m.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Runtime errors published by interpreters",
		},
		[]string{"machine", "kind"},
	)
	m.diagnostics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics published by interpreters",
		},
		[]string{"machine"},
	)
	m.active = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_interpreters",
			Help:      "Interpreters whose last snapshot was running",
		},
		[]string{"machine"},
	)

	m.registry.MustRegister(m.events, m.transitions, m.errors, m.diagnostics, m.active)
	m.logger.Debug().Str("namespace", namespace).Msg("metrics initialized")
	return m
}

// Observe records a notification.
func (m *Metrics) Observe(n core.Notification) {
	switch n.Type {
	case core.NotifySnapshot:
		ev := n.Snapshot.Event.Type
		if ev == "" {
			return
		}
		m.events.WithLabelValues(n.Machine, ev).Inc()
		if n.Changed {
			m.transitions.WithLabelValues(n.Machine, ev).Inc()
		}
		m.track(n)
	case core.NotifyError:
		m.errors.WithLabelValues(n.Machine, errorKind(n.Err)).Inc()
	case core.NotifyDiagnostic:
		m.diagnostics.WithLabelValues(n.Machine).Inc()
	}
}

func (m *Metrics) track(n core.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.running[n.Interpreter]
	is := n.Snapshot.Status == core.StatusRunning
	switch {
	case is && !was:
		m.running[n.Interpreter] = true
		m.active.WithLabelValues(n.Machine).Inc()
	case was && !is:
		delete(m.running, n.Interpreter)
		m.active.WithLabelValues(n.Machine).Dec()
	}
}

func errorKind(err error) string {
	var (
		guardErr  *core.GuardEvaluationError
		actionErr *core.ActionExecutionError
	)
	switch {
	case errors.As(err, &guardErr):
		return "guard"
	case errors.As(err, &actionErr):
		return "action"
	}
	return "other"
}

// Registry returns the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
