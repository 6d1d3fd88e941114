package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"blackroad-os/carpool/pkg/ledger"
)

// Driver names accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// SQLiteConfig contains configuration for the SQLite ledger store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver.
	// Default: "sqlite"
	Driver string

	// WALMode enables Write-Ahead Logging so reads proceed during commits.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/ledger.db",
		Driver:       DriverModernc,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// SQLiteStore implements ledger.Store on SQLite. Every commit runs in an
// IMMEDIATE transaction, so the tail check, the balance checks, the entry
// insert and the balance upserts form one serialized unit across processes.
type SQLiteStore struct {
	db        *sql.DB
	config    *SQLiteConfig
	logger    *slog.Logger
	closeOnce sync.Once

	tailStmt    *sql.Stmt
	byKeyStmt   *sql.Stmt
	balanceStmt *sql.Stmt
	insertStmt  *sql.Stmt
	upsertStmt  *sql.Stmt
	rangeStmt   *sql.Stmt
}

var _ ledger.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the ledger database.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, ledger.NewStorageError("sqlite", "open", fmt.Errorf("db path cannot be empty"))
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}

	dsn, err := buildDSN(config)
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "open", err)
	}

	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxOpenConns)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "ledger.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite ledger store initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)
	return s, nil
}

// buildDSN sets pragmas through the connection string so every pooled
// connection gets them, not only the first.
func buildDSN(cfg *SQLiteConfig) (string, error) {
	busy := cfg.BusyTimeout.Milliseconds()
	switch cfg.Driver {
	case DriverModernc:
		params := []string{
			fmt.Sprintf("_pragma=busy_timeout(%d)", busy),
			"_pragma=synchronous(NORMAL)",
			"_txlock=immediate",
		}
		if cfg.WALMode {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
		return cfg.Path + "?" + strings.Join(params, "&"), nil
	case DriverMattn:
		params := []string{
			fmt.Sprintf("_busy_timeout=%d", busy),
			"_synchronous=NORMAL",
			"_txlock=immediate",
		}
		if cfg.WALMode {
			params = append(params, "_journal_mode=WAL")
		}
		return cfg.Path + "?" + strings.Join(params, "&"), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
}

func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return ledger.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return ledger.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return ledger.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version > SchemaVersion {
		return ledger.NewStorageError("sqlite", "check_schema_version",
			fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion))
	}
	s.logger.Debug("schema ready", "version", version)
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	stmts := []struct {
		dst   **sql.Stmt
		name  string
		query string
	}{
		{&s.tailStmt, "tail", `SELECT sequence, hash FROM ledger_entries ORDER BY sequence DESC LIMIT 1`},
		{&s.byKeyStmt, "by_key", `SELECT ` + entryColumns + ` FROM ledger_entries WHERE idempotency_key = ?`},
		{&s.balanceStmt, "balance", `SELECT amount FROM ledger_balances WHERE entity_type = ? AND entity_id = ? AND currency = ?`},
		{&s.insertStmt, "insert", `INSERT INTO ledger_entries (` + entryColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&s.upsertStmt, "upsert_balance", `INSERT INTO ledger_balances (entity_type, entity_id, currency, amount, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (entity_type, entity_id, currency) DO UPDATE SET
				amount = excluded.amount,
				updated_at = excluded.updated_at`},
		{&s.rangeStmt, "range", `SELECT ` + entryColumns + ` FROM ledger_entries
			WHERE sequence BETWEEN ? AND ? ORDER BY sequence ASC`},
	}

	for _, st := range stmts {
		stmt, err := s.db.Prepare(st.query)
		if err != nil {
			return ledger.NewStorageError("sqlite", "prepare_"+st.name, err)
		}
		*st.dst = stmt
	}
	return nil
}

// Tail returns the highest sequence and its hash. An empty chain is 0 and
// "" with no error.
func (s *SQLiteStore) Tail(ctx context.Context) (int64, string, error) {
	var seq int64
	var hash string
	err := s.tailStmt.QueryRowContext(ctx).Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", ledger.NewStorageError("sqlite", "tail", err)
	}
	return seq, hash, nil
}

// EntryByIdempotencyKey looks up an entry by its idempotency key. A miss
// is nil, nil.
func (s *SQLiteStore) EntryByIdempotencyKey(ctx context.Context, key string) (*ledger.Entry, error) {
	e, err := scanEntry(s.byKeyStmt.QueryRowContext(ctx, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "lookup", err)
	}
	return e, nil
}

// Commit inserts entry and upserts the touched balances in one
// transaction. A sequence other than tail+1 is ledger.ErrSequenceConflict
// and a reused idempotency key is ledger.ErrDuplicateIdempotencyKey. An
// overdraw rolls the whole commit back.
func (s *SQLiteStore) Commit(ctx context.Context, entry *ledger.Entry, deltas []ledger.Delta) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.NewStorageError("sqlite", "begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var tail int64
	err = tx.StmtContext(ctx, s.tailStmt).QueryRowContext(ctx).Scan(&tail, new(string))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ledger.NewStorageError("sqlite", "tail", err)
	}
	err = nil
	if entry.Sequence != tail+1 {
		return ledger.ErrSequenceConflict
	}

	if entry.IdempotencyKey != "" {
		var seq int64
		qerr := tx.QueryRowContext(ctx, `SELECT sequence FROM ledger_entries WHERE idempotency_key = ?`,
			entry.IdempotencyKey).Scan(&seq)
		if qerr == nil {
			return ledger.ErrDuplicateIdempotencyKey
		}
		if !errors.Is(qerr, sql.ErrNoRows) {
			return ledger.NewStorageError("sqlite", "lookup", qerr)
		}
	}

	staged, order, err := s.stageBalances(ctx, tx, deltas)
	if err != nil {
		return err
	}

	meta, err := ledger.CanonicalMetadata(entry.Metadata)
	if err != nil {
		return ledger.NewStorageError("sqlite", "encode", err)
	}
	fromType, fromID := refColumns(entry.From)
	toType, toID := refColumns(entry.To)
	createdAt := ledger.NormalizeTime(entry.CreatedAt).Format(ledger.TimestampLayout)

	_, err = tx.StmtContext(ctx, s.insertStmt).ExecContext(ctx,
		entry.Sequence, entry.ID, string(entry.Type),
		fromType, fromID, toType, toID,
		entry.Amount.String(), entry.Currency,
		nullString(entry.IdempotencyKey), nullString(entry.ExternalRef), string(meta),
		entry.PrevHash, entry.Hash, createdAt,
	)
	if err != nil {
		return ledger.NewStorageError("sqlite", "insert", err)
	}

	upsert := tx.StmtContext(ctx, s.upsertStmt)
	for _, key := range order {
		_, err = upsert.ExecContext(ctx,
			string(key.Entity.Type), key.Entity.ID, key.Currency,
			staged[key].String(), createdAt)
		if err != nil {
			return ledger.NewStorageError("sqlite", "upsert_balance", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return ledger.NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// stageBalances computes the post-commit balance of every touched key in
// delta order and fails on the first one that would go negative.
func (s *SQLiteStore) stageBalances(ctx context.Context, tx *sql.Tx, deltas []ledger.Delta) (map[ledger.BalanceKey]decimal.Decimal, []ledger.BalanceKey, error) {
	staged := make(map[ledger.BalanceKey]decimal.Decimal, len(deltas))
	var order []ledger.BalanceKey
	read := tx.StmtContext(ctx, s.balanceStmt)

	for _, d := range deltas {
		current, ok := staged[d.Key]
		if !ok {
			amount, err := readBalance(ctx, read, d.Key)
			if err != nil {
				return nil, nil, err
			}
			current = amount
			order = append(order, d.Key)
		}
		next := current.Add(d.Amount)
		if next.IsNegative() {
			return nil, nil, ledger.NewInsufficientBalanceError(d.Key, current, d.Amount.Neg())
		}
		staged[d.Key] = next
	}
	return staged, order, nil
}

// Balance reads one cached balance. Keys with no row are zero.
func (s *SQLiteStore) Balance(ctx context.Context, key ledger.BalanceKey) (decimal.Decimal, error) {
	return readBalance(ctx, s.balanceStmt, key)
}

func readBalance(ctx context.Context, stmt *sql.Stmt, key ledger.BalanceKey) (decimal.Decimal, error) {
	var text string
	err := stmt.QueryRowContext(ctx, string(key.Entity.Type), key.Entity.ID, key.Currency).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, ledger.NewStorageError("sqlite", "balance", err)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, ledger.NewStorageError("sqlite", "balance", fmt.Errorf("corrupt amount %q for %s: %w", text, key, err))
	}
	return amount, nil
}

// Balances lists cached balances ordered by entity and currency. A nil
// entity lists every balance.
func (s *SQLiteStore) Balances(ctx context.Context, entity *ledger.EntityRef) ([]ledger.Balance, error) {
	query := `SELECT entity_type, entity_id, currency, amount, updated_at FROM ledger_balances`
	var args []any
	if entity != nil {
		query += ` WHERE entity_type = ? AND entity_id = ?`
		args = append(args, string(entity.Type), entity.ID)
	}
	query += ` ORDER BY entity_type, entity_id, currency`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "balances", err)
	}
	defer rows.Close()

	var out []ledger.Balance
	for rows.Next() {
		var typ, id, currency, amount, updated string
		if err := rows.Scan(&typ, &id, &currency, &amount, &updated); err != nil {
			return nil, ledger.NewStorageError("sqlite", "balances", err)
		}
		b := ledger.Balance{
			Entity:   ledger.EntityRef{Type: ledger.EntityType(typ), ID: id},
			Currency: currency,
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, ledger.NewStorageError("sqlite", "balances", err)
		}
		if b.UpdatedAt, err = time.Parse(ledger.TimestampLayout, updated); err != nil {
			return nil, ledger.NewStorageError("sqlite", "balances", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewStorageError("sqlite", "balances", err)
	}
	return out, nil
}

// Entries runs a filtered query ordered by sequence descending, applying
// the normalized limit and offset.
func (s *SQLiteStore) Entries(ctx context.Context, filter ledger.EntryFilter) ([]*ledger.Entry, error) {
	filter = filter.Normalize()

	var where []string
	var args []any
	if filter.Entity != nil {
		where = append(where, `((from_type = ? AND from_id = ?) OR (to_type = ? AND to_id = ?))`)
		t := string(filter.Entity.Type)
		args = append(args, t, filter.Entity.ID, t, filter.Entity.ID)
	}
	if filter.Type != "" {
		where = append(where, `entry_type = ?`)
		args = append(args, string(filter.Type))
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY sequence DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "query", err)
	}
	return collectEntries(rows, "query")
}

// Range returns entries from..to inclusive in sequence order. Sequences
// past the tail are simply absent from the result.
func (s *SQLiteStore) Range(ctx context.Context, from, to int64) ([]*ledger.Entry, error) {
	if from < 1 {
		from = 1
	}
	if from > to {
		return nil, nil
	}
	rows, err := s.rangeStmt.QueryContext(ctx, from, to)
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "range", err)
	}
	return collectEntries(rows, "range")
}

// Close closes prepared statements and the database. It is safe to call
// more than once.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.tailStmt, s.byKeyStmt, s.balanceStmt, s.insertStmt, s.upsertStmt, s.rangeStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
		s.logger.Info("SQLite ledger store closed")
	})
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectEntries(rows *sql.Rows, op string) ([]*ledger.Entry, error) {
	defer rows.Close()
	var out []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, ledger.NewStorageError("sqlite", op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewStorageError("sqlite", op, err)
	}
	return out, nil
}

func scanEntry(row rowScanner) (*ledger.Entry, error) {
	var (
		e                              ledger.Entry
		typ, amount, meta, createdAt   string
		fromType, fromID, toType, toID sql.NullString
		idemKey, extRef                sql.NullString
	)
	err := row.Scan(&e.Sequence, &e.ID, &typ, &fromType, &fromID, &toType, &toID,
		&amount, &e.Currency, &idemKey, &extRef, &meta, &e.PrevHash, &e.Hash, &createdAt)
	if err != nil {
		return nil, err
	}

	e.Type = ledger.EntryType(typ)
	e.From = refFromColumns(fromType, fromID)
	e.To = refFromColumns(toType, toID)
	e.IdempotencyKey = idemKey.String
	e.ExternalRef = extRef.String

	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("entry %d: corrupt amount %q: %w", e.Sequence, amount, err)
	}
	if e.Metadata, err = ledger.DecodeMetadata([]byte(meta)); err != nil {
		return nil, fmt.Errorf("entry %d: %w", e.Sequence, err)
	}
	if e.CreatedAt, err = time.Parse(ledger.TimestampLayout, createdAt); err != nil {
		return nil, fmt.Errorf("entry %d: corrupt timestamp %q: %w", e.Sequence, createdAt, err)
	}
	return &e, nil
}

func refColumns(ref *ledger.EntityRef) (sql.NullString, sql.NullString) {
	if ref == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return nullString(string(ref.Type)), nullString(ref.ID)
}

func refFromColumns(typ, id sql.NullString) *ledger.EntityRef {
	if !typ.Valid {
		return nil
	}
	return &ledger.EntityRef{Type: ledger.EntityType(typ.String), ID: id.String}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
