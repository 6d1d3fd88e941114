package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"blackroad-os/carpool/pkg/routing"
	"blackroad-os/carpool/pkg/telemetry/logging"
	"blackroad-os/carpool/pkg/telemetry/tracing"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body. Unknown
// fields are rejected. Numbers decode as json.Number.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	if err := dec.Decode(dst); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, codeInvalidJSON, msg)
		return false
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "request body must contain a single JSON object")
		return false
	}
	return true
}

func queryInt(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

type analyzeRequest struct {
	Text    string            `json:"text"`
	History []routing.Message `json:"history,omitempty"`
}

// routeRequest either carries a precomputed task profile or text to
// analyze first.
type routeRequest struct {
	Text               string               `json:"text,omitempty"`
	History            []routing.Message    `json:"history,omitempty"`
	Task               *routing.TaskProfile `json:"task,omitempty"`
	AvailableProviders []string             `json:"available_providers,omitempty"`
	PreferredProvider  string               `json:"preferred_provider,omitempty"`
}

type routeResponse struct {
	Task     *routing.TaskProfile `json:"task"`
	Decision *routing.Decision    `json:"decision"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := s.deps.Analyzer.Analyze(req.Text, req.History)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task := req.Task
	if task == nil {
		var err error
		if task, err = s.deps.Analyzer.Analyze(req.Text, req.History); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	} else if err := task.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	available := s.deps.DefaultProviders
	if len(req.AvailableProviders) > 0 {
		parsed, err := routing.ParseProviders(req.AvailableProviders)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
			return
		}
		available = parsed
	}

	var prefs *routing.Preferences
	if req.PreferredProvider != "" {
		p, err := routing.ParseProvider(req.PreferredProvider)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
			return
		}
		prefs = &routing.Preferences{PreferredProvider: p}
	}

	ctx := logging.WithTaskType(r.Context(), string(task.Type))
	decision, err := s.deps.Router.Route(ctx, task, available, prefs)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	span := tracing.SpanFromContext(ctx)
	tracing.SetTaskAttributes(span, string(task.Type), string(task.Complexity), task.EstimatedTokens)
	tracing.SetRoutingAttributes(span, string(decision.SelectedProvider), decision.SelectedModel,
		decision.Confidence, decision.RequirementsRelaxed)

	ctx = logging.WithModel(logging.WithProvider(ctx, string(decision.SelectedProvider)), decision.SelectedModel)
	s.logger.DebugContext(ctx, "routed", "score", decision.Confidence, "relaxed", decision.RequirementsRelaxed)

	writeJSON(w, http.StatusOK, routeResponse{Task: task, Decision: decision})
}
