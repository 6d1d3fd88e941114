// Package metrics exposes Prometheus metrics for routing and the ledger.
//
// A Collector owns a private registry, so tests and multiple servers in one
// process never collide on registration. It implements both
// routing.Recorder and chain.Recorder and is passed to those packages with
// their WithRecorder options:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics)
//	router, _ := routing.NewRouter(catalog, routing.WithRecorder(collector))
//	ledger := chain.New(store, chain.WithRecorder(collector))
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Routing metrics count decisions by provider, model and task type, count
// failures by reason and observe the winning score. Ledger metrics count
// appends and rejections, sum credit volume per type and currency, time
// commits, and track the chain tail and verification results.
//
// Model labels pass through a CardinalityLimiter because catalogs can be
// replaced from configuration. Label sets beyond the limit are reported
// under "other".
package metrics
