/*
Package sqlite provides a SQLite-backed Store.

PURPOSE:
  A single-file production backend. Each collection document lives in one
  row of the collections table; Write is an UPSERT, Read a point lookup.
  This keeps the whole-collection-replace contract while gaining crash
  safety and atomic writes from the database.

WAL MODE:
  The database is opened with WAL (Write-Ahead Logging):
  - readers don't block the single writer
  - better crash recovery than the default rollback journal

MIGRATION:
  The schema is created on New(). It is one table; a migration tool would
  be overkill at this size.

USAGE:
  st, err := sqlite.New("./data/records.db")
  if err != nil { ... }
  defer st.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements store.Store on a collections table.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name       TEXT PRIMARY KEY,
		document   BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Read(ctx context.Context, collection string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM collections WHERE name = ?`, collection).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return doc, nil
}

func (s *Store) Write(ctx context.Context, collection string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, document, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		collection, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}
	return nil
}
