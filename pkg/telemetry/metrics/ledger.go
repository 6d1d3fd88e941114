package metrics

import (
	"strconv"
	"time"

	"blackroad-os/carpool/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks ledger appends and chain verification.
//
// Metrics:
//   - carpool_core_ledger_appends_total{type}
//   - carpool_core_ledger_append_rejections_total{reason}
//   - carpool_core_ledger_credit_volume_total{type, currency}
//   - carpool_core_ledger_append_duration_seconds
//   - carpool_core_ledger_idempotent_replays_total
//   - carpool_core_ledger_verifications_total{valid}
//   - carpool_core_ledger_verified_entries_total
//   - carpool_core_ledger_chain_tail
type LedgerMetrics struct {
	appends        *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	volume         *prometheus.CounterVec
	appendDuration prometheus.Histogram
	replays        prometheus.Counter
	verifications  *prometheus.CounterVec
	verified       prometheus.Counter
	tail           prometheus.Gauge
}

// NewLedgerMetrics creates and registers ledger metrics.
func NewLedgerMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *LedgerMetrics {
	lm := &LedgerMetrics{
		appends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ledger_appends_total",
				Help:      "Committed ledger entries by entry type",
			},
			[]string{"type"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ledger_append_rejections_total",
				Help:      "Append requests that did not commit, by reason",
			},
			[]string{"reason"},
		),
		volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ledger_credit_volume_total",
				Help:      "Sum of committed entry amounts by entry type and currency",
			},
			[]string{"type", "currency"},
		),
		appendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ledger_append_duration_seconds",
				Help:      "Time to commit an entry, including conflict retries",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
			},
		),
		replays: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ledger_idempotent_replays_total",
				Help:      "Appends answered with an existing entry for the same idempotency key",
			},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ledger_verifications_total",
				Help:      "Chain verification runs by result",
			},
			[]string{"valid"},
		),
		verified: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ledger_verified_entries_total",
				Help:      "Entries checked by chain verification",
			},
		),
		tail: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ledger_chain_tail",
				Help:      "Sequence number of the last committed entry",
			},
		),
	}

	registry.MustRegister(
		lm.appends,
		lm.rejections,
		lm.volume,
		lm.appendDuration,
		lm.replays,
		lm.verifications,
		lm.verified,
		lm.tail,
	)
	return lm
}

// RecordAppend records a committed entry.
func (lm *LedgerMetrics) RecordAppend(entryType, currency string, amount float64, duration time.Duration) {
	lm.appends.WithLabelValues(entryType).Inc()
	if amount > 0 {
		lm.volume.WithLabelValues(entryType, currency).Add(amount)
	}
	lm.appendDuration.Observe(duration.Seconds())
}

// RecordRejected records a rejected append.
func (lm *LedgerMetrics) RecordRejected(reason string) {
	lm.rejections.WithLabelValues(reason).Inc()
}

// RecordReplay records an idempotent replay.
func (lm *LedgerMetrics) RecordReplay() {
	lm.replays.Inc()
}

// SetTail sets the chain tail gauge.
func (lm *LedgerMetrics) SetTail(sequence int64) {
	lm.tail.Set(float64(sequence))
}

// RecordVerification records a verification run.
func (lm *LedgerMetrics) RecordVerification(valid bool, checked int) {
	lm.verifications.WithLabelValues(strconv.FormatBool(valid)).Inc()
	if checked > 0 {
		lm.verified.Add(float64(checked))
	}
}
