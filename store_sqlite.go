package insider

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultStoreTTL is how long a persisted lookup result stays valid
const DefaultStoreTTL = 24 * time.Hour

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS insider_lookups (
	ticker    TEXT PRIMARY KEY,
	payload   TEXT NOT NULL,
	cached_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_insider_lookups_cached_at ON insider_lookups(cached_at);
`

// SQLiteStore implements Store on a SQLite database with one row per
// ticker. Expiry is enforced by the store itself: reads exclude rows
// older than the TTL, and writes purge them.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
}

// OpenSQLiteStore opens (creating if needed) the lookup cache database.
// A non-positive ttl falls back to DefaultStoreTTL.
func OpenSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultStoreTTL
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &SQLiteStore{db: db, ttl: ttl}, nil
}

// Get returns the cached result for a ticker if one exists and is
// younger than the TTL.
func (s *SQLiteStore) Get(ctx context.Context, ticker string) (*LookupResult, bool, error) {
	cutoff := time.Now().Add(-s.ttl).UnixNano()

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM insider_lookups WHERE ticker = ? AND cached_at > ?`,
		ticker, cutoff,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache read failed: %w", err)
	}

	var result LookupResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &result, true, nil
}

// Put upserts the result for a ticker and opportunistically purges
// expired rows.
func (s *SQLiteStore) Put(ctx context.Context, ticker string, result *LookupResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	now := time.Now().UnixNano()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO insider_lookups (ticker, payload, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		ticker, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}

	cutoff := time.Now().Add(-s.ttl).UnixNano()
	_, _ = s.db.ExecContext(ctx, `DELETE FROM insider_lookups WHERE cached_at <= ?`, cutoff)
	return nil
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
