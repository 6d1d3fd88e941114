package storage

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"blackroad-os/carpool/pkg/ledger"
)

// MemoryStore is a process-local Store. It is intended for tests and
// single-run CLI use; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*ledger.Entry
	byKey    map[string]*ledger.Entry
	balances *ledger.BalanceCache
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey:    make(map[string]*ledger.Entry),
		balances: ledger.NewBalanceCache(),
	}
}

var _ ledger.Store = (*MemoryStore)(nil)

// Tail returns the last sequence and hash, or 0 and "" when empty.
func (s *MemoryStore) Tail(ctx context.Context) (int64, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx, "tail"); err != nil {
		return 0, "", err
	}
	if len(s.entries) == 0 {
		return 0, "", nil
	}
	last := s.entries[len(s.entries)-1]
	return last.Sequence, last.Hash, nil
}

// EntryByIdempotencyKey returns a copy of the entry stored under key, or
// nil when there is none.
func (s *MemoryStore) EntryByIdempotencyKey(ctx context.Context, key string) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx, "lookup"); err != nil {
		return nil, err
	}
	return s.byKey[key].Clone(), nil
}

// Commit appends entry and applies deltas under one lock. A sequence that
// is not tail+1 fails with ledger.ErrSequenceConflict, and a delta that
// would overdraw leaves the store unchanged.
func (s *MemoryStore) Commit(ctx context.Context, entry *ledger.Entry, deltas []ledger.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx, "commit"); err != nil {
		return err
	}

	if entry.Sequence != int64(len(s.entries))+1 {
		return ledger.ErrSequenceConflict
	}
	if entry.IdempotencyKey != "" {
		if _, ok := s.byKey[entry.IdempotencyKey]; ok {
			return ledger.ErrDuplicateIdempotencyKey
		}
	}
	if err := s.balances.ApplyDeltas(deltas, entry.CreatedAt); err != nil {
		return err
	}

	stored := entry.Clone()
	s.entries = append(s.entries, stored)
	if stored.IdempotencyKey != "" {
		s.byKey[stored.IdempotencyKey] = stored
	}
	return nil
}

// Balance returns the cached amount for key, zero when never touched.
func (s *MemoryStore) Balance(ctx context.Context, key ledger.BalanceKey) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx, "balance"); err != nil {
		return decimal.Zero, err
	}
	return s.balances.Get(key), nil
}

// Balances lists cached balances, optionally for a single entity.
func (s *MemoryStore) Balances(ctx context.Context, entity *ledger.EntityRef) ([]ledger.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx, "balances"); err != nil {
		return nil, err
	}
	all := s.balances.Snapshot()
	if entity == nil {
		return all, nil
	}
	out := all[:0]
	for _, b := range all {
		if b.Entity == *entity {
			out = append(out, b)
		}
	}
	return out, nil
}

// Entries returns copies of matching entries, newest first.
func (s *MemoryStore) Entries(ctx context.Context, filter ledger.EntryFilter) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx, "query"); err != nil {
		return nil, err
	}

	filter = filter.Normalize()
	var out []*ledger.Entry
	skipped := 0
	for i := len(s.entries) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		e := s.entries[i]
		if !filter.Matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

// Range returns copies of entries from..to inclusive, clamped to the
// stored chain.
func (s *MemoryStore) Range(ctx context.Context, from, to int64) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx, "range"); err != nil {
		return nil, err
	}

	if from < 1 {
		from = 1
	}
	if to > int64(len(s.entries)) {
		to = int64(len(s.entries))
	}
	if from > to {
		return nil, nil
	}
	out := make([]*ledger.Entry, 0, to-from+1)
	for _, e := range s.entries[from-1 : to] {
		out = append(out, e.Clone())
	}
	return out, nil
}

// Close marks the store closed. Further calls fail.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// usable reports a closed store or a cancelled context. Callers hold s.mu.
func (s *MemoryStore) usable(ctx context.Context, op string) error {
	if s.closed {
		return ledger.NewStorageError("memory", op, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return ledger.NewStorageError("memory", op, err)
	}
	return nil
}
