package chain

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/processing/costs"
)

// Ledger bundles a Store with its Writer and Verifier and is the surface
// used by the CLI and the HTTP server.
type Ledger struct {
	store    ledger.Store
	writer   *Writer
	verifier *Verifier
	currency string
	calc     *costs.Calculator
}

// New creates a Ledger over store. The caller keeps ownership of store.
func New(store ledger.Store, opts ...Option) *Ledger {
	o := buildOptions(opts)
	return &Ledger{
		store:    store,
		writer:   NewWriter(store, opts...),
		verifier: NewVerifier(store, opts...),
		currency: o.currency,
		calc:     costs.NewCalculator(o.scale),
	}
}

// Store returns the underlying store.
func (l *Ledger) Store() ledger.Store { return l.store }

// DefaultCurrency returns the currency used when none is given.
func (l *Ledger) DefaultCurrency() string { return l.currency }

// Append records a credit movement.
func (l *Ledger) Append(ctx context.Context, req AppendRequest) (*ledger.Entry, error) {
	return l.writer.Append(ctx, req)
}

// ChargeUsage records a credit_burn from payer for completed usage billed at
// costPer1K. The amount is rounded to the ledger scale. base supplies the
// currency, idempotency key, external reference and extra metadata; the
// charge's own metadata keys take precedence over base's.
func (l *Ledger) ChargeUsage(ctx context.Context, payer ledger.EntityRef, usage costs.TokenUsage, costPer1K float64, base AppendRequest) (*ledger.Entry, error) {
	charge, err := l.calc.Charge(usage, costPer1K)
	if err != nil {
		return nil, ledger.NewValidationError("usage", "%v", err)
	}

	meta := make(map[string]any, len(base.Metadata)+5)
	for k, v := range base.Metadata {
		meta[k] = v
	}
	for k, v := range charge.Metadata() {
		meta[k] = v
	}

	req := base
	req.Type = ledger.EntryCreditBurn
	req.Amount = charge.Amount
	req.From = &payer
	req.To = nil
	req.Metadata = meta
	return l.writer.Append(ctx, req)
}

// Balance returns the balance of entity in currency, zero if unseen. An
// empty currency selects the default.
func (l *Ledger) Balance(ctx context.Context, entity ledger.EntityRef, currency string) (decimal.Decimal, error) {
	return l.store.Balance(ctx, ledger.BalanceKey{Entity: entity, Currency: l.currencyOrDefault(currency)})
}

// Balances returns every balance held by entity, or all balances when
// entity is nil.
func (l *Ledger) Balances(ctx context.Context, entity *ledger.EntityRef) ([]ledger.Balance, error) {
	return l.store.Balances(ctx, entity)
}

// Entries lists entries newest first.
func (l *Ledger) Entries(ctx context.Context, filter ledger.EntryFilter) ([]*ledger.Entry, error) {
	return l.store.Entries(ctx, filter)
}

// Tail returns the current tail sequence and hash.
func (l *Ledger) Tail(ctx context.Context) (int64, string, error) {
	return l.store.Tail(ctx)
}

// Verify reports whether entries from..to are intact.
func (l *Ledger) Verify(ctx context.Context, from, to int64) (bool, error) {
	return l.verifier.Verify(ctx, from, to)
}

// VerifyRange returns a detailed verification report.
func (l *Ledger) VerifyRange(ctx context.Context, from, to int64) (*Report, error) {
	return l.verifier.VerifyRange(ctx, from, to)
}

// Reconcile compares cached balances with a replay of the chain.
func (l *Ledger) Reconcile(ctx context.Context) ([]Drift, error) {
	return Reconcile(ctx, l.store)
}

func (l *Ledger) currencyOrDefault(c string) string {
	if c = strings.TrimSpace(c); c != "" {
		return c
	}
	return l.currency
}
