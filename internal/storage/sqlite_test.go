package storage

import (
	"testing"

	"github.com/ringclient/ring-client-go/internal/api"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCredentialRoundTrip(t *testing.T) {
	store := newTestStore(t)

	blob, err := store.LoadCredential()
	if err != nil || blob != "" {
		t.Fatalf("empty store load = (%q, %v), want no credential", blob, err)
	}

	if err := store.SaveCredential("blob-1"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.SaveCredential("blob-2"); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	blob, err = store.LoadCredential()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if blob != "blob-2" {
		t.Fatalf("blob = %q, want the latest save to win", blob)
	}

	if err := store.DeleteCredential(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if blob, _ = store.LoadCredential(); blob != "" {
		t.Fatalf("blob = %q after delete, want empty", blob)
	}
}

func TestDeviceSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.LoadDeviceSnapshot("loc-1")
	if !ringerrors.IsCode(err, ringerrors.CodeStorageNotFound) {
		t.Fatalf("err = %v, want storage.not_found for missing snapshot", err)
	}

	records := []api.DeviceData{
		{"zid": "z1", "deviceType": "security-panel", "mode": "none"},
		{"zid": "z2", "deviceType": "sensor.contact", "faulted": true},
	}
	if err := store.SaveDeviceSnapshot("loc-1", records); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, captured, err := store.LoadDeviceSnapshot("loc-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if captured.IsZero() {
		t.Fatal("capture time not recorded")
	}
	if len(loaded) != 2 || loaded[0].ZID() != "z1" || loaded[1]["faulted"] != true {
		t.Fatalf("loaded = %v, want the saved records", loaded)
	}

	// Snapshots are per location.
	if _, _, err := store.LoadDeviceSnapshot("loc-2"); !ringerrors.IsCode(err, ringerrors.CodeStorageNotFound) {
		t.Fatalf("err = %v, want storage.not_found for other location", err)
	}

	// A replacement overwrites wholesale.
	if err := store.SaveDeviceSnapshot("loc-1", records[:1]); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if loaded, _, _ = store.LoadDeviceSnapshot("loc-1"); len(loaded) != 1 {
		t.Fatalf("loaded %d records after replace, want 1", len(loaded))
	}
}
