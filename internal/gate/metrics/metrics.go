package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the gate module.
type Metrics struct {
	// Gate decisions by action and outcome
	Decisions *prometheus.CounterVec

	// Overrides exercised by action
	Overrides *prometheus.CounterVec

	// Full evaluation latency including the projection replay
	EvaluateLatency prometheus.Histogram
}

// New creates a new Metrics instance with all gate module metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deal_kernel_gate_decisions_total",
			Help: "Gate decisions by action and outcome",
		}, []string{"action", "outcome"}), // outcome: "allowed", "blocked", "overridden"

		Overrides: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deal_kernel_gate_overrides_total",
			Help: "Override paths exercised by action",
		}, []string{"action"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "deal_kernel_gate_evaluate_duration_seconds",
			Help:    "Duration of gate evaluation including projection replay",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementDecision records a gate decision outcome.
func (m *Metrics) IncrementDecision(action, outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(action, outcome).Inc()
	}
}

// IncrementOverride records an exercised override.
func (m *Metrics) IncrementOverride(action string) {
	if m != nil {
		m.Overrides.WithLabelValues(action).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
