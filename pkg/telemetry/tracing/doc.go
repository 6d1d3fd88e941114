// Package tracing provides OpenTelemetry tracing for the HTTP API.
//
// Each request gets a server span named after its matched route, parented
// on any W3C traceparent the caller sent. Handlers annotate the span with
// the analyzed task, the routing decision or the committed ledger entry
// using the carpool.* attribute keys in this package.
//
// Spans are exported over OTLP gRPC when telemetry.tracing.enabled is set:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: localhost:4317
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// A disabled Tracer records nothing, but trace context is still extracted
// so request logs can carry the caller's trace id.
package tracing
