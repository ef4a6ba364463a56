// Package storage persists the client's local state in SQLite: the
// serialized credential blob and the last-known device snapshot per
// location. The rest client itself never touches storage; persistence
// is driven by the embedding application (and cmd/ring-auth).
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	// Pure-Go SQLite driver, registered for database/sql. No CGO, so
	// cross-compilation and in-memory test databases stay simple.
	_ "modernc.org/sqlite"

	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

// Store is a SQLite-backed persistence layer. It creates the database
// and schema on first use and supports concurrent access through
// internal locking.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at the given path and initializes
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	log.Printf("storage: opening database at %s", path)

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, ringerrors.Wrap(ringerrors.CodeStorageOpenFailed, "open database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ringerrors.Wrap(ringerrors.CodeStorageOpenFailed, "ping database", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, ringerrors.Wrap(ringerrors.CodeStorageOpenFailed, "init schema", err)
	}
	return store, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			blob TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS device_snapshots (
			location_id TEXT PRIMARY KEY,
			snapshot TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
