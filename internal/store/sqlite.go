package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the SQLite-backed store.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (or creates) a SQLite store at the given path and
// ensures the schema exists.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) initialize() error {
	schema := `
	-- Commits (immutable; delta entries live in commit_deltas)
	CREATE TABLE IF NOT EXISTS commits (
		id INTEGER PRIMARY KEY,
		parent INTEGER NOT NULL,
		timestamp INTEGER
	);

	-- Per-commit, per-collection delta entries; seq preserves
	-- insertion order within one commit and collection
	CREATE TABLE IF NOT EXISTS commit_deltas (
		commit_id INTEGER NOT NULL,
		collection TEXT NOT NULL,
		seq INTEGER NOT NULL,
		object_id INTEGER NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (commit_id, collection, seq)
	);

	-- Branches (named references to commits)
	CREATE TABLE IF NOT EXISTS branches (
		name TEXT PRIMARY KEY,
		head INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Document revisions, one logical table per collection
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id INTEGER NOT NULL,
		data BLOB,
		timestamp INTEGER,
		PRIMARY KEY (collection, id)
	);

	-- Monotonic id sequences
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	-- Advisory locks (maintenance freeze)
	CREATE TABLE IF NOT EXISTS locks (
		name TEXT PRIMARY KEY,
		acquired_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_commits_timestamp ON commits(timestamp);
	CREATE INDEX IF NOT EXISTS idx_deltas_collection ON commit_deltas(collection, commit_id);
	CREATE INDEX IF NOT EXISTS idx_documents_timestamp ON documents(collection, timestamp);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// NextID returns the next value of a named sequence.
func (s *SQLite) NextID(ctx context.Context, sequence string) (uint64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, sequence).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", sequence, err)
	}
	return uint64(value), nil
}

// Freeze takes the advisory maintenance lock.
func (s *SQLite) Freeze(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO locks (name) VALUES ('maintenance')")
	if err != nil {
		return fmt.Errorf("acquire maintenance lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire maintenance lock: %w", err)
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

// Unfreeze releases the advisory maintenance lock.
func (s *SQLite) Unfreeze(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM locks WHERE name = 'maintenance'"); err != nil {
		return fmt.Errorf("release maintenance lock: %w", err)
	}
	return nil
}

// nullableMillis maps a zero timestamp to NULL so the expiry scans
// can treat "no timestamp" uniformly.
func nullableMillis(ts int64) sql.NullInt64 {
	return sql.NullInt64{Int64: ts, Valid: ts != 0}
}

// placeholders returns "?, ?, ..." for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// parseTimestamp parses a timestamp string from SQLite in various
// formats.
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// idArgs widens a uint64 id slice into driver arguments.
func idArgs(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	return args
}
