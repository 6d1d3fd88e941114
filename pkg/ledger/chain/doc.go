// Package chain appends to and verifies the hash-linked credit ledger.
//
// Writer.Append is the only way entries come into existence. It validates
// the request, returns the original entry for a repeated idempotency key,
// links the new entry to the current tail (or GENESIS), hashes it and
// commits it together with its balance changes. Appends through one Writer
// are serialized with a mutex; the store additionally rejects a commit that
// does not extend its tail, and the writer retries those.
//
// Verifier recomputes hashes over a sequence range. Reconcile replays the
// chain from genesis and reports cached balances that disagree.
//
// Ledger wraps all three behind one value:
//
//	l := chain.New(store, chain.WithRecorder(collector))
//	entry, err := l.Append(ctx, chain.AppendRequest{
//		Type:   ledger.EntryCreditBurn,
//		From:   &ledger.EntityRef{Type: ledger.EntityUser, ID: "u1"},
//		Amount: decimal.NewFromInt(30),
//	})
//	if errors.Is(err, ledger.ErrInsufficientBalance) {
//		// nothing was written
//	}
package chain
