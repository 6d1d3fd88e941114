package metrics

import (
	"blackroad-os/carpool/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks requests turned away before reaching a handler.
//
// Metrics:
//   - carpool_core_http_rejections_total{reason}
//   - carpool_core_http_in_flight
type HTTPMetrics struct {
	rejections *prometheus.CounterVec
	inFlight   prometheus.Gauge
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *HTTPMetrics {
	hm := &HTTPMetrics{
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_rejections_total",
				Help:      "API requests rejected by authentication or throttling",
			},
			[]string{"reason"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_in_flight",
				Help:      "API requests currently being served",
			},
		),
	}

	registry.MustRegister(hm.rejections, hm.inFlight)
	return hm
}
