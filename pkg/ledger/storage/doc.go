// Package storage provides ledger.Store implementations.
//
// MemoryStore keeps everything in process memory. SQLiteStore persists the
// entry log and the balance table in one database, with the driver chosen
// by configuration: "sqlite" (modernc.org/sqlite, no cgo) or "sqlite3"
// (github.com/mattn/go-sqlite3). Triggers reject UPDATE and DELETE on the
// entry table.
package storage
