package metrics

import (
	"fmt"
	"sync"
	"time"

	"blackroad-os/carpool/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// otherLabel replaces label values once the cardinality limit is reached.
const otherLabel = "other"

// defaultMaxCardinality bounds distinct model label sets. Catalogs can be
// replaced from configuration, so model names are not a closed set.
const defaultMaxCardinality = 1000

// Collector owns a private Prometheus registry and records routing and
// ledger events. It satisfies routing.Recorder, chain.Recorder and
// server.Recorder.
//
// A disabled Collector accepts every call and records nothing.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	routing *RoutingMetrics
	ledger  *LedgerMetrics
	http    *HTTPMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a Collector and registers all metrics with a new
// registry. Empty namespace, subsystem and buckets fall back to defaults.
func NewCollector(cfg config.MetricsConfig) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.ScoreBuckets) == 0 {
		cfg.ScoreBuckets = append([]float64(nil), config.DefaultScoreBuckets...)
	}

	registry := prometheus.NewRegistry()
	return &Collector{
		config:             cfg,
		registry:           registry,
		routing:            NewRoutingMetrics(cfg, registry),
		ledger:             NewLedgerMetrics(cfg, registry),
		http:               NewHTTPMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(defaultMaxCardinality),
	}
}

// Enabled reports whether the collector records anything.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordRoutingDecision records a successful routing decision.
func (c *Collector) RecordRoutingDecision(provider, model, taskType string, score float64, relaxed bool) {
	if !c.config.Enabled {
		return
	}

	labelSet := fmt.Sprintf("decision:%s:%s:%s", provider, model, taskType)
	if !c.cardinalityLimiter.Allow(labelSet) {
		model = otherLabel
	}
	c.routing.RecordDecision(provider, model, taskType, score, relaxed)
}

// RecordRoutingFailure records a request that produced no decision.
func (c *Collector) RecordRoutingFailure(reason string) {
	if !c.config.Enabled {
		return
	}
	c.routing.RecordFailure(reason)
}

// RecordAppend records a committed ledger entry.
func (c *Collector) RecordAppend(entryType, currency string, amount float64, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.ledger.RecordAppend(entryType, currency, amount, duration)
}

// RecordAppendRejected records an append that did not commit. Reasons are
// "invalid", "insufficient_balance", "conflict", "storage" and "canceled".
func (c *Collector) RecordAppendRejected(reason string) {
	if !c.config.Enabled {
		return
	}
	c.ledger.RecordRejected(reason)
}

// RecordIdempotentReplay records an append answered from an earlier entry.
func (c *Collector) RecordIdempotentReplay() {
	if !c.config.Enabled {
		return
	}
	c.ledger.RecordReplay()
}

// RecordChainTail sets the chain tail gauge.
func (c *Collector) RecordChainTail(sequence int64) {
	if !c.config.Enabled {
		return
	}
	c.ledger.SetTail(sequence)
}

// RecordVerification records one verification run.
func (c *Collector) RecordVerification(valid bool, checked int) {
	if !c.config.Enabled {
		return
	}
	c.ledger.RecordVerification(valid, checked)
}

// RecordRejection records an API request turned away before its handler.
// Reasons are "unauthorized", "forbidden", "rate_limited" and "overloaded".
func (c *Collector) RecordRejection(reason string) {
	if !c.config.Enabled {
		return
	}
	c.http.rejections.WithLabelValues(reason).Inc()
}

// AddInFlight adjusts the in-flight request gauge by delta.
func (c *Collector) AddInFlight(delta int) {
	if !c.config.Enabled {
		return
	}
	c.http.inFlight.Add(float64(delta))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits under the
// limit. A new label set that fits is remembered.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
