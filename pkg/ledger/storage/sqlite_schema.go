package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the ledger database schema.
// Amounts are stored as decimal text and timestamps in the canonical
// microsecond layout so values round-trip exactly into the hash input.
const Schema = `
-- Append-only entry log
CREATE TABLE IF NOT EXISTS ledger_entries (
    sequence INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    entry_type TEXT NOT NULL,

    from_type TEXT,
    from_id TEXT,
    to_type TEXT,
    to_id TEXT,

    amount TEXT NOT NULL,
    currency TEXT NOT NULL,

    idempotency_key TEXT UNIQUE,
    external_ref TEXT,
    metadata TEXT NOT NULL DEFAULT '{}',

    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- Materialized running balances
CREATE TABLE IF NOT EXISTS ledger_balances (
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    currency TEXT NOT NULL,
    amount TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (entity_type, entity_id, currency)
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE TRIGGER IF NOT EXISTS ledger_entries_no_update
BEFORE UPDATE ON ledger_entries
BEGIN
    SELECT RAISE(ABORT, 'ledger entries are append-only');
END;

CREATE TRIGGER IF NOT EXISTS ledger_entries_no_delete
BEFORE DELETE ON ledger_entries
BEGIN
    SELECT RAISE(ABORT, 'ledger entries are append-only');
END;

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_ledger_entries_from ON ledger_entries(from_type, from_id);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_to ON ledger_entries(to_type, to_id);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_type ON ledger_entries(entry_type);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_external_ref ON ledger_entries(external_ref);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const entryColumns = `sequence, id, entry_type, from_type, from_id, to_type, to_id,
	amount, currency, idempotency_key, external_ref, metadata, prev_hash, hash, created_at`
