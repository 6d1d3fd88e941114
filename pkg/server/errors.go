package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/routing"
	"blackroad-os/carpool/pkg/telemetry/tracing"
)

// Error codes returned in ErrorResponse.
const (
	codeInvalidJSON         = "invalid_json"
	codeInvalidRequest      = "invalid_request"
	codeInvalidEntry        = "invalid_entry"
	codeInsufficientBalance = "insufficient_balance"
	codeNoCandidates        = "no_candidates"
	codeUnavailable         = "unavailable"
	codeUnauthorized        = "unauthorized"
	codeForbidden           = "forbidden"
	codeRateLimited         = "rate_limited"
	codeInternal            = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeDomainError maps routing and ledger errors onto HTTP statuses.
// Unclassified errors are logged and reported as 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *ledger.ValidationError
		ierr   *ledger.InsufficientBalanceError
		detail ErrorDetail
		status int
	)

	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		detail = ErrorDetail{Code: codeInvalidEntry, Message: verr.Message, Field: verr.Field}
	case errors.Is(err, ledger.ErrInvalidEntry):
		status = http.StatusBadRequest
		detail = ErrorDetail{Code: codeInvalidEntry, Message: err.Error()}
	case errors.As(err, &ierr):
		status = http.StatusConflict
		detail = ErrorDetail{Code: codeInsufficientBalance, Message: ierr.Error()}
	case errors.Is(err, routing.ErrNoCandidates):
		status = http.StatusUnprocessableEntity
		detail = ErrorDetail{Code: codeNoCandidates, Message: err.Error()}
	case errors.Is(err, routing.ErrEmptyTask):
		status = http.StatusBadRequest
		detail = ErrorDetail{Code: codeInvalidRequest, Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		detail = ErrorDetail{Code: codeUnavailable, Message: "request cancelled"}
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "error", err)
		status = http.StatusInternalServerError
		detail = ErrorDetail{Code: codeInternal, Message: "an internal error occurred"}
	}

	tracing.SetErrorAttributes(tracing.SpanFromContext(r.Context()), err, detail.Code)
	writeJSON(w, status, ErrorResponse{Error: detail})
}
