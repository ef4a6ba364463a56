package storage

import (
	"database/sql"
	"errors"
	"time"

	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

// SaveCredential stores the serialized credential blob, replacing any
// previous one. There is exactly one credential row.
func (s *Store) SaveCredential(blob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT OR REPLACE INTO credentials (id, blob, updated_at)
		VALUES (1, ?, ?)
	`
	if _, err := s.db.Exec(query, blob, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return ringerrors.Wrap(ringerrors.CodeStorageSaveFailed, "save credential", err)
	}
	return nil
}

// LoadCredential returns the stored credential blob, or "" if none has
// been saved yet.
func (s *Store) LoadCredential() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRow(`SELECT blob FROM credentials WHERE id = 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", ringerrors.Wrap(ringerrors.CodeStorageQueryFailed, "load credential", err)
	}
	return blob, nil
}

// DeleteCredential removes the stored credential. Deleting a missing
// credential is not an error.
func (s *Store) DeleteCredential() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM credentials WHERE id = 1`); err != nil {
		return ringerrors.Wrap(ringerrors.CodeStorageSaveFailed, "delete credential", err)
	}
	return nil
}
