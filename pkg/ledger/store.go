package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the durable, ordered entry log plus the balance table.
//
// Commit is the only write. It must persist the entry and apply its deltas
// as one atomic unit: on any error neither the entry nor any balance change
// is visible, and no sequence number is consumed.
type Store interface {
	// Tail returns the highest sequence and its hash. An empty store
	// returns 0 and "".
	Tail(ctx context.Context) (int64, string, error)

	// EntryByIdempotencyKey returns the entry carrying key, or nil if none.
	EntryByIdempotencyKey(ctx context.Context, key string) (*Entry, error)

	// Commit appends entry and applies deltas. It returns
	// ErrSequenceConflict if entry.Sequence is not tail+1,
	// ErrDuplicateIdempotencyKey if the key is taken, and an
	// InsufficientBalanceError if a balance would go negative.
	Commit(ctx context.Context, entry *Entry, deltas []Delta) error

	// Balance returns the cached balance for key, zero if unseen.
	Balance(ctx context.Context, key BalanceKey) (decimal.Decimal, error)

	// Balances returns every cached balance, optionally restricted to one
	// entity, ordered by key.
	Balances(ctx context.Context, entity *EntityRef) ([]Balance, error)

	// Entries lists entries matching filter, newest sequence first.
	Entries(ctx context.Context, filter EntryFilter) ([]*Entry, error)

	// Range returns entries with from <= sequence <= to in ascending order.
	Range(ctx context.Context, from, to int64) ([]*Entry, error)

	// Close releases resources held by the store.
	Close() error
}
