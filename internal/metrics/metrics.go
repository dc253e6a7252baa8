// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	StepsTotal       *prometheus.CounterVec
	ExecutionsTotal  *prometheus.CounterVec
	ActiveExecutions prometheus.Gauge
	TokensTotal      *prometheus.CounterVec
	CostTotal        prometheus.Counter
	StepDuration     prometheus.Histogram
}

// New creates and registers the engine collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.StepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goalflow",
		Name:      "steps_total",
		Help:      "Sub-steps dispatched, by terminal status.",
	}, []string{"status"})

	m.ExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goalflow",
		Name:      "executions_total",
		Help:      "Executions finished, by terminal status.",
	}, []string{"status"})

	m.ActiveExecutions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "goalflow",
		Name:      "active_executions",
		Help:      "Executions currently inside the scheduler loop.",
	})

	m.TokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goalflow",
		Name:      "tokens_total",
		Help:      "Tokens consumed by inference steps, by kind.",
	}, []string{"kind"})

	m.CostTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goalflow",
		Name:      "cost_dollars_total",
		Help:      "Accumulated dollar cost across all executions.",
	})

	m.StepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "goalflow",
		Name:      "step_duration_seconds",
		Help:      "Wall-clock duration of step dispatches.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	m.registry.MustRegister(
		m.StepsTotal, m.ExecutionsTotal, m.ActiveExecutions,
		m.TokensTotal, m.CostTotal, m.StepDuration,
	)
	return m
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
