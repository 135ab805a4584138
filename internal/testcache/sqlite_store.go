package testcache

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is a Store backed by a private in-memory SQLite database.
// The database lives only as long as the store; nothing touches disk.
type SQLiteStore struct {
	db   *sql.DB
	name string
}

// NewSQLiteStore opens a fresh in-memory database named after the session.
// An empty sessionID gets a random name.
func NewSQLiteStore(sessionID string) (*SQLiteStore, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", sessionID)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A shared-cache memory database disappears with its last connection,
	// so keep exactly one connection open for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db, name: sessionID}, nil
}

// NeedsExecution reports whether digest is unseen or last failed.
// A query error is treated as "needs execution".
func (s *SQLiteStore) NeedsExecution(digest string) bool {
	var passed bool
	err := s.db.QueryRow("SELECT passed FROM outcomes WHERE digest = ?", digest).Scan(&passed)
	if err != nil {
		return true
	}
	return !passed
}

// HasRunBefore reports whether digest has a recorded outcome.
// A query error is treated as "has run before" so the next staging gets a fresh name.
func (s *SQLiteStore) HasRunBefore(digest string) bool {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM outcomes WHERE digest = ?", digest).Scan(&count); err != nil {
		return true
	}
	return count > 0
}

// RecordOutcome upserts the outcome for digest.
func (s *SQLiteStore) RecordOutcome(digest string, passed bool) error {
	_, err := s.db.Exec(`
		INSERT INTO outcomes (digest, passed) VALUES (?, ?)
		ON CONFLICT(digest) DO UPDATE SET
			passed = excluded.passed,
			runs = runs + 1,
			recorded_at = CURRENT_TIMESTAMP`,
		digest, passed)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", digest, err)
	}
	return nil
}

// Runs returns how many outcomes were recorded for digest.
func (s *SQLiteStore) Runs(digest string) (int, error) {
	var runs int
	err := s.db.QueryRow("SELECT runs FROM outcomes WHERE digest = ?", digest).Scan(&runs)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query runs: %w", err)
	}
	return runs, nil
}

// Len returns the number of recorded digests.
func (s *SQLiteStore) Len() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM outcomes").Scan(&count); err != nil {
		return 0
	}
	return count
}

// Summary counts passed and failed digests.
func (s *SQLiteStore) Summary() (passed, failed int) {
	row := s.db.QueryRow("SELECT COALESCE(SUM(passed), 0), COALESCE(SUM(1 - passed), 0) FROM outcomes")
	if err := row.Scan(&passed, &failed); err != nil {
		return 0, 0
	}
	return passed, failed
}

// Close closes the database, discarding every recorded outcome.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
