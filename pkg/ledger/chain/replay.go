package chain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"blackroad-os/carpool/pkg/ledger"
)

// Drift is a balance whose cached value differs from the value obtained by
// replaying the chain.
type Drift struct {
	Key      ledger.BalanceKey `json:"-"`
	Entity   string            `json:"entity"`
	Currency string            `json:"currency"`
	Cached   decimal.Decimal   `json:"cached"`
	Replayed decimal.Decimal   `json:"replayed"`
}

// Replay rebuilds balances from genesis into a fresh cache.
func Replay(ctx context.Context, store ledger.Store) (*ledger.BalanceCache, error) {
	tail, _, err := store.Tail(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain tail: %w", err)
	}

	cache := ledger.NewBalanceCache()
	for start := int64(1); start <= tail; start += verifyBatch {
		end := min(start+verifyBatch-1, tail)
		entries, err := store.Range(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to load entries %d-%d: %w", start, end, err)
		}
		for _, e := range entries {
			if err := cache.ApplyDeltas(ledger.DeltasFor(e), e.CreatedAt); err != nil {
				return nil, fmt.Errorf("replaying entry %d: %w", e.Sequence, err)
			}
		}
	}
	return cache, nil
}

// Reconcile replays the chain and compares the result with the store's
// balance table. An empty result means the cache is consistent.
func Reconcile(ctx context.Context, store ledger.Store) ([]Drift, error) {
	replayed, err := Replay(ctx, store)
	if err != nil {
		return nil, err
	}
	cached, err := store.Balances(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}

	want := make(map[ledger.BalanceKey]decimal.Decimal)
	for _, b := range replayed.Snapshot() {
		want[b.Key()] = b.Amount
	}
	have := make(map[ledger.BalanceKey]decimal.Decimal, len(cached))
	for _, b := range cached {
		have[b.Key()] = b.Amount
	}

	var keys []ledger.Balance
	for k := range want {
		keys = append(keys, ledger.Balance{Entity: k.Entity, Currency: k.Currency})
	}
	for k := range have {
		if _, ok := want[k]; !ok {
			keys = append(keys, ledger.Balance{Entity: k.Entity, Currency: k.Currency})
		}
	}
	ledger.SortBalances(keys)

	var drifts []Drift
	for _, b := range keys {
		k := b.Key()
		if have[k].Equal(want[k]) {
			continue
		}
		drifts = append(drifts, Drift{
			Key:      k,
			Entity:   k.Entity.String(),
			Currency: k.Currency,
			Cached:   have[k],
			Replayed: want[k],
		})
	}
	return drifts, nil
}
