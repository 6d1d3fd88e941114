package chain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/ledger/storage"
)

var (
	userU  = ledger.EntityRef{Type: ledger.EntityUser, ID: "U"}
	userV  = ledger.EntityRef{Type: ledger.EntityUser, ID: "V"}
	agentA = ledger.EntityRef{Type: ledger.EntityAgent, ID: "a-7"}
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// stepClock advances by one millisecond and a few nanoseconds per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond + 7*time.Nanosecond)
		return now
	}
}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	opts = append([]Option{WithClock(stepClock())}, opts...)
	return New(store, opts...), store
}

func grant(t *testing.T, l *Ledger, to ledger.EntityRef, amount string) *ledger.Entry {
	t.Helper()
	e, err := l.Append(context.Background(), AppendRequest{Type: ledger.EntryCreditGrant, To: &to, Amount: amt(amount)})
	require.NoError(t, err)
	return e
}

func burn(l *Ledger, from ledger.EntityRef, amount string) (*ledger.Entry, error) {
	return l.Append(context.Background(), AppendRequest{Type: ledger.EntryCreditBurn, From: &from, Amount: amt(amount)})
}

type fakeRecorder struct {
	mu           sync.Mutex
	appends      map[string]int
	rejected     map[string]int
	replays      int
	tail         int64
	verifyRuns   int
	lastValid    bool
	lastChecked  int
	creditVolume float64
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{appends: map[string]int{}, rejected: map[string]int{}}
}

func (r *fakeRecorder) RecordAppend(entryType, _ string, amount float64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appends[entryType]++
	r.creditVolume += amount
}

func (r *fakeRecorder) RecordAppendRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}

func (r *fakeRecorder) RecordIdempotentReplay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replays++
}

func (r *fakeRecorder) RecordChainTail(seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tail = seq
}

func (r *fakeRecorder) RecordVerification(valid bool, checked int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifyRuns++
	r.lastValid = valid
	r.lastChecked = checked
}

// tamperStore rewrites entries as they are read, simulating edits made
// directly to durable storage.
type tamperStore struct {
	ledger.Store
	seq    int64
	mutate func(*ledger.Entry)
	drop   bool
}

func (s *tamperStore) Range(ctx context.Context, from, to int64) ([]*ledger.Entry, error) {
	entries, err := s.Store.Range(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Sequence == s.seq {
			if s.drop {
				continue
			}
			s.mutate(e)
		}
		out = append(out, e)
	}
	return out, nil
}
