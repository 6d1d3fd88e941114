package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"blackroad-os/carpool/pkg/ledger"
)

// maxCommitAttempts bounds retries when another process appends between
// reading the tail and committing.
const maxCommitAttempts = 5

// AppendRequest describes a credit movement to record.
type AppendRequest struct {
	Type     ledger.EntryType
	Amount   decimal.Decimal
	From     *ledger.EntityRef
	To       *ledger.EntityRef
	Currency string
	Metadata map[string]any

	// IdempotencyKey makes the append safe to repeat: a second request
	// with the same key returns the first entry unchanged.
	IdempotencyKey string

	// ExternalRef is an opaque payment processor reference.
	ExternalRef string
}

// Writer appends entries to a Store. Appends are serialized: only one is
// in flight per Writer, and the store rejects commits that do not extend
// the current tail.
type Writer struct {
	store ledger.Store
	opts  options
	mu    sync.Mutex
}

// NewWriter creates a Writer over store.
func NewWriter(store ledger.Store, opts ...Option) *Writer {
	return &Writer{store: store, opts: buildOptions(opts)}
}

// Append validates req, links it to the current tail and commits it
// together with its balance changes. On InsufficientBalanceError nothing
// is written.
func (w *Writer) Append(ctx context.Context, req AppendRequest) (*ledger.Entry, error) {
	start := w.opts.clock()

	req, err := w.normalize(req)
	if err != nil {
		w.opts.recorder.RecordAppendRejected("invalid")
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			w.opts.recorder.RecordAppendRejected("canceled")
			return nil, err
		}

		if req.IdempotencyKey != "" {
			existing, err := w.store.EntryByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				w.opts.recorder.RecordAppendRejected("storage")
				return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
			}
			if existing != nil {
				w.opts.recorder.RecordIdempotentReplay()
				w.opts.logger.Debug("idempotent append replayed",
					"idempotency_key", req.IdempotencyKey,
					"sequence", existing.Sequence,
				)
				return existing, nil
			}
		}

		entry, err := w.build(ctx, req)
		if err != nil {
			w.opts.recorder.RecordAppendRejected("storage")
			return nil, err
		}

		err = w.store.Commit(ctx, entry, ledger.DeltasFor(entry))
		switch {
		case err == nil:
			elapsed := w.opts.clock().Sub(start)
			w.opts.recorder.RecordAppend(string(entry.Type), entry.Currency, entry.Amount.InexactFloat64(), elapsed)
			w.opts.recorder.RecordChainTail(entry.Sequence)
			w.opts.logger.Info("ledger entry appended",
				"sequence", entry.Sequence,
				"type", entry.Type,
				"amount", entry.Amount.String(),
				"currency", entry.Currency,
				"hash", entry.Hash,
			)
			return entry, nil

		case errors.Is(err, ledger.ErrSequenceConflict), errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
			w.opts.logger.Warn("ledger commit conflict, retrying",
				"attempt", attempt,
				"sequence", entry.Sequence,
				"error", err,
			)
			continue

		case errors.Is(err, ledger.ErrInsufficientBalance):
			w.opts.recorder.RecordAppendRejected("insufficient_balance")
			return nil, err

		default:
			w.opts.recorder.RecordAppendRejected("storage")
			return nil, fmt.Errorf("failed to commit entry %d: %w", entry.Sequence, err)
		}
	}

	w.opts.recorder.RecordAppendRejected("conflict")
	return nil, fmt.Errorf("gave up after %d conflicting commits: %w", maxCommitAttempts, ledger.ErrSequenceConflict)
}

// build reads the tail and produces the next linked, hashed entry.
func (w *Writer) build(ctx context.Context, req AppendRequest) (*ledger.Entry, error) {
	seq, tailHash, err := w.store.Tail(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain tail: %w", err)
	}
	prev := tailHash
	if seq == 0 {
		prev = ledger.GenesisHash
	}

	entry := &ledger.Entry{
		Sequence:       seq + 1,
		ID:             uuid.NewString(),
		Type:           req.Type,
		From:           req.From,
		To:             req.To,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: req.IdempotencyKey,
		ExternalRef:    req.ExternalRef,
		Metadata:       req.Metadata,
		PrevHash:       prev,
		CreatedAt:      ledger.NormalizeTime(w.opts.clock()),
	}
	entry.Hash, err = ledger.ComputeHash(w.opts.scheme, entry, w.opts.scale)
	if err != nil {
		return nil, fmt.Errorf("failed to hash entry %d: %w", entry.Sequence, err)
	}
	return entry, nil
}

// normalize validates req and returns a copy the writer owns.
func (w *Writer) normalize(req AppendRequest) (AppendRequest, error) {
	if _, err := ledger.ParseEntryType(string(req.Type)); err != nil {
		return req, ledger.NewValidationError("type", "%v", err)
	}
	if req.Amount.IsNegative() {
		return req, ledger.NewValidationError("amount", "must not be negative, got %s", req.Amount)
	}
	if !req.Amount.Equal(req.Amount.Truncate(w.opts.scale)) {
		return req, ledger.NewValidationError("amount", "%s has more than %d decimal places", req.Amount, w.opts.scale)
	}

	if req.From != nil {
		if err := req.From.Validate(); err != nil {
			return req, ledger.NewValidationError("from", "%v", err)
		}
	}
	if req.To != nil {
		if err := req.To.Validate(); err != nil {
			return req, ledger.NewValidationError("to", "%v", err)
		}
	}

	switch req.Type {
	case ledger.EntryCreditBurn, ledger.EntryPayout:
		if req.From == nil {
			return req, ledger.NewValidationError("from", "%s requires a source entity", req.Type)
		}
	case ledger.EntryCreditGrant, ledger.EntryReward:
		if req.To == nil {
			return req, ledger.NewValidationError("to", "%s requires a destination entity", req.Type)
		}
	case ledger.EntryTransfer:
		if req.From == nil || req.To == nil {
			return req, ledger.NewValidationError("from", "transfer requires both source and destination")
		}
		if *req.From == *req.To {
			return req, ledger.NewValidationError("to", "transfer source and destination must differ")
		}
	case ledger.EntryVerification:
	}

	req.Currency = strings.TrimSpace(req.Currency)
	if req.Currency == "" {
		req.Currency = w.opts.currency
	}
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	if req.From != nil {
		from := *req.From
		req.From = &from
	}
	if req.To != nil {
		to := *req.To
		req.To = &to
	}

	// Round-trip metadata through its canonical encoding so the stored
	// value hashes identically after a storage round trip.
	raw, err := ledger.CanonicalMetadata(req.Metadata)
	if err != nil {
		return req, ledger.NewValidationError("metadata", "%v", err)
	}
	if req.Metadata, err = ledger.DecodeMetadata(raw); err != nil {
		return req, ledger.NewValidationError("metadata", "%v", err)
	}
	return req, nil
}
