package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ringclient/ring-client-go/internal/api"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

// SaveDeviceSnapshot stores the last-known device records for a
// location, replacing any previous snapshot. Embedding applications
// use snapshots to present device state before the realtime connection
// has settled.
func (s *Store) SaveDeviceSnapshot(locationID string, records []api.DeviceData) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return ringerrors.Wrap(ringerrors.CodeStorageSaveFailed, "encode snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT OR REPLACE INTO device_snapshots (location_id, snapshot, updated_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.Exec(query, locationID, string(raw), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return ringerrors.Wrap(ringerrors.CodeStorageSaveFailed, "save snapshot", err)
	}
	return nil
}

// LoadDeviceSnapshot returns the stored device records for a location
// and when they were captured. A missing snapshot yields
// storage.not_found.
func (s *Store) LoadDeviceSnapshot(locationID string) ([]api.DeviceData, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw, updatedAt string
	err := s.db.QueryRow(
		`SELECT snapshot, updated_at FROM device_snapshots WHERE location_id = ?`,
		locationID,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ringerrors.New(ringerrors.CodeStorageNotFound,
			"no device snapshot for location "+locationID)
	}
	if err != nil {
		return nil, time.Time{}, ringerrors.Wrap(ringerrors.CodeStorageQueryFailed, "load snapshot", err)
	}

	var records []api.DeviceData
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, time.Time{}, ringerrors.Wrap(ringerrors.CodeStorageQueryFailed, "decode snapshot", err)
	}
	captured, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, time.Time{}, ringerrors.Wrap(ringerrors.CodeStorageQueryFailed, "parse updated_at", err)
	}
	return records, captured, nil
}
