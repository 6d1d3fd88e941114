// Package ledger defines the append-only credit ledger: entries, entity
// references, balances, the canonical hash form and the Store contract.
//
// Every entry embeds the hash of the entry before it. The first entry links
// to GenesisHash. A hash is "<scheme>:<hex digest>" over the compact sorted
// JSON of prev, type, from, to, amount, currency, ts and meta, so a stored
// chain can be re-verified after the configured scheme changes.
//
// Balances are derived state. They are kept incrementally for O(1) lookup
// and can always be rebuilt by replaying entries from genesis.
//
// Writers live in package chain; durable stores live in package storage.
package ledger
