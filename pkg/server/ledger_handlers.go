package server

import (
	"net/http"

	"github.com/shopspring/decimal"

	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/ledger/chain"
	"blackroad-os/carpool/pkg/processing/costs"
	"blackroad-os/carpool/pkg/telemetry/logging"
	"blackroad-os/carpool/pkg/telemetry/tracing"
)

// IdempotencyKeyHeader may carry the idempotency key instead of the body.
const IdempotencyKeyHeader = "Idempotency-Key"

type appendRequest struct {
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	From           string          `json:"from,omitempty"`
	To             string          `json:"to,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	ExternalRef    string          `json:"external_ref,omitempty"`
}

// toAppend converts the wire request. Parse failures come back as
// ledger.ValidationError so they map to 400 like writer rejections.
func (req appendRequest) toAppend() (chain.AppendRequest, error) {
	typ, err := ledger.ParseEntryType(req.Type)
	if err != nil {
		return chain.AppendRequest{}, ledger.NewValidationError("type", "%v", err)
	}
	out := chain.AppendRequest{
		Type:           typ,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
		ExternalRef:    req.ExternalRef,
	}
	if req.From != "" {
		ref, err := ledger.ParseEntityRef(req.From)
		if err != nil {
			return chain.AppendRequest{}, ledger.NewValidationError("from", "%v", err)
		}
		out.From = &ref
	}
	if req.To != "" {
		ref, err := ledger.ParseEntityRef(req.To)
		if err != nil {
			return chain.AppendRequest{}, ledger.NewValidationError("to", "%v", err)
		}
		out.To = &ref
	}
	return out, nil
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}

	appendReq, err := req.toAppend()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	entry, err := s.deps.Ledger.Append(r.Context(), appendReq)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	tracing.SetLedgerAttributes(tracing.SpanFromContext(r.Context()), string(entry.Type), entry.Currency, entry.Sequence)
	writeJSON(w, http.StatusCreated, entry)
}

// usageRequest bills a completed call: the amount is the catalog rate of
// Model applied to the token counts.
type usageRequest struct {
	From             string         `json:"from"`
	Model            string         `json:"model"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	Currency         string         `json:"currency,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	IdempotencyKey   string         `json:"idempotency_key,omitempty"`
	ExternalRef      string         `json:"external_ref,omitempty"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}

	payer, err := ledger.ParseEntityRef(req.From)
	if err != nil {
		s.writeDomainError(w, r, ledger.NewValidationError("from", "%v", err))
		return
	}
	capability, ok := s.deps.Router.Catalog().Lookup(req.Model)
	if !ok {
		s.writeDomainError(w, r, ledger.NewValidationError("model", "%q is not in the routing catalog", req.Model))
		return
	}

	usage := costs.TokenUsage{
		Model:            req.Model,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
	}
	base := chain.AppendRequest{
		Currency:       req.Currency,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
		ExternalRef:    req.ExternalRef,
	}
	entry, err := s.deps.Ledger.ChargeUsage(r.Context(), payer, usage, capability.CostPer1KTokens, base)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	tracing.SetLedgerAttributes(tracing.SpanFromContext(r.Context()), string(entry.Type), entry.Currency, entry.Sequence)
	writeJSON(w, http.StatusCreated, entry)
}

type entriesResponse struct {
	Entries []*ledger.Entry `json:"entries"`
	Count   int             `json:"count"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter ledger.EntryFilter

	if v := q.Get("entity"); v != "" {
		ref, err := ledger.ParseEntityRef(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
			return
		}
		filter.Entity = &ref
	}
	if v := q.Get("type"); v != "" {
		typ, err := ledger.ParseEntryType(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
			return
		}
		filter.Type = typ
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	filter.Limit = int(limit)
	filter.Offset = int(offset)

	entries, err := s.deps.Ledger.Entries(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries, Count: len(entries)})
}

type balanceResponse struct {
	Entity   ledger.EntityRef `json:"entity"`
	Currency string           `json:"currency"`
	Amount   decimal.Decimal  `json:"amount"`
}

type balancesResponse struct {
	Entity   ledger.EntityRef `json:"entity"`
	Balances []ledger.Balance `json:"balances"`
}

// handleBalance returns one currency when ?currency= is given and every
// currency the entity holds otherwise.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ref := ledger.EntityRef{
		Type: ledger.EntityType(r.PathValue("type")),
		ID:   r.PathValue("id"),
	}
	if err := ref.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	ctx := logging.WithEntity(r.Context(), ref.String())

	if currency := r.URL.Query().Get("currency"); currency != "" {
		amount, err := s.deps.Ledger.Balance(ctx, ref, currency)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, balanceResponse{Entity: ref, Currency: currency, Amount: amount})
		return
	}

	balances, err := s.deps.Ledger.Balances(ctx, &ref)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if balances == nil {
		balances = []ledger.Balance{}
	}
	writeJSON(w, http.StatusOK, balancesResponse{Entity: ref, Balances: balances})
}

// handleVerify reports on a sequence range. A broken chain is a 200 with
// valid=false; only storage failures are errors.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	from, err := queryInt(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	to, err := queryInt(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	report, err := s.deps.Ledger.VerifyRange(r.Context(), from, to)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
