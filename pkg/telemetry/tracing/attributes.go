package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTP keys follow the OpenTelemetry HTTP server conventions.
const (
	attrHTTPMethod = "http.request.method"
	attrHTTPRoute  = "http.route"
	attrHTTPStatus = "http.response.status_code"
	attrURLPath    = "url.path"
)

// Attribute keys use the "carpool." namespace.
const (
	AttrRequestID = "carpool.request_id"

	AttrTaskType       = "carpool.task.type"
	AttrTaskComplexity = "carpool.task.complexity"
	AttrTaskTokens     = "carpool.task.estimated_tokens"

	AttrRoutingProvider   = "carpool.routing.provider"
	AttrRoutingModel      = "carpool.routing.model"
	AttrRoutingConfidence = "carpool.routing.confidence"
	AttrRoutingRelaxed    = "carpool.routing.requirements_relaxed"

	AttrLedgerEntryType = "carpool.ledger.entry_type"
	AttrLedgerCurrency  = "carpool.ledger.currency"
	AttrLedgerSequence  = "carpool.ledger.sequence"

	AttrErrorType = "carpool.error.type"
)

// SetTaskAttributes records the analyzer's view of a task.
func SetTaskAttributes(span trace.Span, taskType, complexity string, estimatedTokens int) {
	span.SetAttributes(
		attribute.String(AttrTaskType, taskType),
		attribute.String(AttrTaskComplexity, complexity),
		attribute.Int(AttrTaskTokens, estimatedTokens),
	)
}

// SetRoutingAttributes records a routing decision.
func SetRoutingAttributes(span trace.Span, provider, model string, confidence float64, relaxed bool) {
	span.SetAttributes(
		attribute.String(AttrRoutingProvider, provider),
		attribute.String(AttrRoutingModel, model),
		attribute.Float64(AttrRoutingConfidence, confidence),
		attribute.Bool(AttrRoutingRelaxed, relaxed),
	)
}

// SetLedgerAttributes records a committed ledger entry.
func SetLedgerAttributes(span trace.Span, entryType, currency string, sequence int64) {
	span.SetAttributes(
		attribute.String(AttrLedgerEntryType, entryType),
		attribute.String(AttrLedgerCurrency, currency),
		attribute.Int64(AttrLedgerSequence, sequence),
	)
}

// SetErrorAttributes records err with a short machine-readable type. A nil
// error is ignored.
func SetErrorAttributes(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorType, errorType))
}
