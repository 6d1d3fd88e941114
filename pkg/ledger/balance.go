package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceCache is an in-memory materialization of per-(entity, currency)
// running totals. It is safe for concurrent use. Unseen keys read as zero.
type BalanceCache struct {
	mu       sync.RWMutex
	balances map[BalanceKey]decimal.Decimal
	updated  map[BalanceKey]time.Time
}

// NewBalanceCache creates an empty cache.
func NewBalanceCache() *BalanceCache {
	return &BalanceCache{
		balances: make(map[BalanceKey]decimal.Decimal),
		updated:  make(map[BalanceKey]time.Time),
	}
}

// Get returns the balance for key.
func (c *BalanceCache) Get(key BalanceKey) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[key]
}

// ApplyDelta adds delta to the balance for key and returns the new value.
// The balance is left unchanged and an InsufficientBalanceError returned if
// the result would be negative.
func (c *BalanceCache) ApplyDelta(key BalanceKey, delta decimal.Decimal) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.balances[key]
	next := current.Add(delta)
	if next.IsNegative() {
		return current, NewInsufficientBalanceError(key, current, delta.Neg())
	}
	c.balances[key] = next
	c.updated[key] = time.Now().UTC()
	return next, nil
}

// ApplyDeltas applies all deltas as one unit: either every delta is applied
// or none is. Deltas on the same key are summed before the check.
func (c *BalanceCache) ApplyDeltas(deltas []Delta, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.stage(deltas)
	if err != nil {
		return err
	}
	for key, amount := range next {
		c.balances[key] = amount
		c.updated[key] = at
	}
	return nil
}

// stage computes resulting balances in delta order. Callers hold c.mu.
func (c *BalanceCache) stage(deltas []Delta) (map[BalanceKey]decimal.Decimal, error) {
	next := make(map[BalanceKey]decimal.Decimal, len(deltas))
	for _, d := range deltas {
		current, ok := next[d.Key]
		if !ok {
			current = c.balances[d.Key]
		}
		result := current.Add(d.Amount)
		if result.IsNegative() {
			return nil, NewInsufficientBalanceError(d.Key, current, d.Amount.Neg())
		}
		next[d.Key] = result
	}
	return next, nil
}

// Snapshot returns all balances ordered by key.
func (c *BalanceCache) Snapshot() []Balance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Balance, 0, len(c.balances))
	for key, amount := range c.balances {
		out = append(out, Balance{
			Entity:    key.Entity,
			Currency:  key.Currency,
			Amount:    amount,
			UpdatedAt: c.updated[key],
		})
	}
	SortBalances(out)
	return out
}

// Len returns the number of tracked keys.
func (c *BalanceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.balances)
}

// SortBalances orders balances by entity type, entity id, then currency.
func SortBalances(bs []Balance) {
	sort.Slice(bs, func(i, j int) bool {
		a, b := bs[i], bs[j]
		if a.Entity.Type != b.Entity.Type {
			return a.Entity.Type < b.Entity.Type
		}
		if a.Entity.ID != b.Entity.ID {
			return a.Entity.ID < b.Entity.ID
		}
		return a.Currency < b.Currency
	})
}
