package metrics

import (
	"blackroad-os/carpool/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RoutingMetrics tracks routing decisions.
//
// Metrics:
//   - carpool_core_routing_decisions_total{provider, model, task_type}
//   - carpool_core_routing_failures_total{reason}
//   - carpool_core_routing_relaxed_total
//   - carpool_core_routing_score
type RoutingMetrics struct {
	decisions *prometheus.CounterVec
	failures  *prometheus.CounterVec
	relaxed   prometheus.Counter
	score     prometheus.Histogram
}

// NewRoutingMetrics creates and registers routing metrics.
func NewRoutingMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *RoutingMetrics {
	rm := &RoutingMetrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "routing_decisions_total",
				Help:      "Routing decisions by selected provider, model and task type",
			},
			[]string{"provider", "model", "task_type"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "routing_failures_total",
				Help:      "Routing requests that produced no decision",
			},
			[]string{"reason"},
		),
		relaxed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "routing_relaxed_total",
				Help:      "Decisions made after no model met the task requirements",
			},
		),
		score: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "routing_score",
				Help:      "Score of the selected model",
				Buckets:   cfg.ScoreBuckets,
			},
		),
	}

	registry.MustRegister(rm.decisions, rm.failures, rm.relaxed, rm.score)
	return rm
}

// RecordDecision records one decision.
func (rm *RoutingMetrics) RecordDecision(provider, model, taskType string, score float64, relaxed bool) {
	rm.decisions.WithLabelValues(provider, model, taskType).Inc()
	rm.score.Observe(score)
	if relaxed {
		rm.relaxed.Inc()
	}
}

// RecordFailure records a failed routing request.
func (rm *RoutingMetrics) RecordFailure(reason string) {
	rm.failures.WithLabelValues(reason).Inc()
}
