package chain

import (
	"context"
	"fmt"

	"blackroad-os/carpool/pkg/ledger"
)

// verifyBatch is how many entries are loaded per storage round trip.
const verifyBatch = 500

// Report is the outcome of verifying a sequence range.
type Report struct {
	From         int64                       `json:"from"`
	To           int64                       `json:"to"`
	Checked      int                         `json:"checked"`
	Valid        bool                        `json:"valid"`
	FirstInvalid int64                       `json:"first_invalid,omitempty"`
	Failure      *ledger.ChainIntegrityError `json:"failure,omitempty"`
}

// Err returns the integrity failure, or nil for a valid range.
func (r *Report) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Verifier recomputes entry hashes and checks their links.
type Verifier struct {
	store ledger.Store
	opts  options
}

// NewVerifier creates a Verifier over store. Only WithAmountScale,
// WithRecorder and WithLogger affect verification.
func NewVerifier(store ledger.Store, opts ...Option) *Verifier {
	return &Verifier{store: store, opts: buildOptions(opts)}
}

// Verify reports whether entries from..to are intact.
func (v *Verifier) Verify(ctx context.Context, from, to int64) (bool, error) {
	report, err := v.VerifyRange(ctx, from, to)
	if err != nil {
		return false, err
	}
	return report.Valid, nil
}

// VerifyRange checks entries from..to inclusive in sequence order. A
// non-positive from means 1 and a non-positive to means the current tail.
// A range that starts at 1 must link to GenesisHash. Any other range trusts
// the stored previous hash of its first entry as the anchor, so it proves
// internal consistency only. An inverted range or one past the tail is a
// ledger.ValidationError. The walk stops at the first failing entry.
func (v *Verifier) VerifyRange(ctx context.Context, from, to int64) (*Report, error) {
	tail, _, err := v.store.Tail(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain tail: %w", err)
	}
	from, to, err = ResolveRange(from, to, tail)
	if err != nil {
		return nil, err
	}

	report := &Report{From: from, To: to, Valid: true}
	if to == 0 {
		// An empty chain is trivially intact.
		v.finish(report)
		return report, nil
	}

	expected := from
	var prevHash string
	if from == 1 {
		prevHash = ledger.GenesisHash
	}

	for start := from; start <= to; start += verifyBatch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+verifyBatch-1, to)

		entries, err := v.store.Range(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to load entries %d-%d: %w", start, end, err)
		}

		for _, e := range entries {
			if failure := v.check(e, expected, prevHash); failure != nil {
				report.Valid = false
				report.FirstInvalid = failure.Sequence
				report.Failure = failure
				v.finish(report)
				return report, nil
			}
			report.Checked++
			prevHash = e.Hash
			expected++
		}
		if expected <= end {
			// Trailing entries of the batch are missing.
			report.Valid = false
			report.FirstInvalid = expected
			report.Failure = &ledger.ChainIntegrityError{
				Sequence: expected,
				Reason:   "sequence gap",
				Expected: fmt.Sprint(expected),
				Actual:   "missing",
			}
			v.finish(report)
			return report, nil
		}
	}

	v.finish(report)
	return report, nil
}

// ResolveRange applies the VerifyRange defaults against tail and rejects
// ranges that are inverted or reach past it. The empty chain resolves to
// 1..0 without error.
func ResolveRange(from, to, tail int64) (int64, int64, error) {
	if from < 1 {
		from = 1
	}
	if to <= 0 {
		to = tail
	}
	switch {
	case tail == 0 && to == 0:
		return from, to, nil
	case from > to:
		return 0, 0, ledger.NewValidationError("from", "from %d is after to %d", from, to)
	case to > tail:
		return 0, 0, ledger.NewValidationError("to", "to %d is past the chain tail %d", to, tail)
	}
	return from, to, nil
}

// check validates one entry. prevHash is empty for the first entry of a
// sub-range and GenesisHash for entry 1.
func (v *Verifier) check(e *ledger.Entry, expected int64, prevHash string) *ledger.ChainIntegrityError {
	if e.Sequence != expected {
		return &ledger.ChainIntegrityError{
			Sequence: expected,
			Reason:   "sequence gap",
			Expected: fmt.Sprint(expected),
			Actual:   fmt.Sprint(e.Sequence),
		}
	}
	if prevHash != "" && e.PrevHash != prevHash {
		reason := "previous hash does not match prior entry"
		if prevHash == ledger.GenesisHash {
			reason = "first entry does not link to genesis"
		}
		return &ledger.ChainIntegrityError{
			Sequence: e.Sequence,
			Reason:   reason,
			Expected: prevHash,
			Actual:   e.PrevHash,
		}
	}

	scheme, err := ledger.SchemeOf(e.Hash)
	if err != nil {
		return &ledger.ChainIntegrityError{Sequence: e.Sequence, Reason: err.Error()}
	}
	recomputed, err := ledger.ComputeHash(scheme, e, v.opts.scale)
	if err != nil {
		return &ledger.ChainIntegrityError{Sequence: e.Sequence, Reason: err.Error()}
	}
	if recomputed != e.Hash {
		return &ledger.ChainIntegrityError{
			Sequence: e.Sequence,
			Reason:   "hash mismatch",
			Expected: recomputed,
			Actual:   e.Hash,
		}
	}
	return nil
}

func (v *Verifier) finish(r *Report) {
	v.opts.recorder.RecordVerification(r.Valid, r.Checked)
	if r.Valid {
		v.opts.logger.Info("chain verified", "from", r.From, "to", r.To, "checked", r.Checked)
		return
	}
	v.opts.logger.Error("chain integrity violation",
		"from", r.From,
		"to", r.To,
		"sequence", r.FirstInvalid,
		"reason", r.Failure.Reason,
		"expected", r.Failure.Expected,
		"actual", r.Failure.Actual,
	)
}
