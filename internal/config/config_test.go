package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadParsesAllFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
refresh_token = "tok"
email = "user@example.com"
system_id = "sys-1"
display_name = "Kitchen Pi"
credential_store = "/tmp/ring.db"
location_mode_polling_seconds = 20
debug = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RefreshToken != "tok" || cfg.Email != "user@example.com" || cfg.SystemID != "sys-1" {
		t.Fatalf("credentials not parsed: %+v", cfg)
	}
	if cfg.DisplayName != "Kitchen Pi" || cfg.CredentialStore != "/tmp/ring.db" {
		t.Fatalf("paths not parsed: %+v", cfg)
	}
	if cfg.LocationModePollingSeconds != 20 || !cfg.Debug {
		t.Fatalf("options not parsed: %+v", cfg)
	}
}

func TestLoadDefaultsDisplayName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`email = "user@example.com"`), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DisplayName != "ring-client-go" {
		t.Fatalf("display name = %q, want the default", cfg.DisplayName)
	}
}

func TestLoadExplicitMissingPathErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want a not-found error for an explicit path", err)
	}
}

func TestSaveRefreshTokenPreservesOtherFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("email = \"user@example.com\"\ndebug = true\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := SaveRefreshToken(path, "rotated-token"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if cfg.RefreshToken != "rotated-token" {
		t.Fatalf("refresh token = %q, want the rotated value", cfg.RefreshToken)
	}
	if cfg.Email != "user@example.com" || !cfg.Debug {
		t.Fatalf("existing settings lost: %+v", cfg)
	}
}

func TestSaveRefreshTokenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	if err := SaveRefreshToken(path, "first-token"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if cfg.RefreshToken != "first-token" {
		t.Fatalf("refresh token = %q, want first-token", cfg.RefreshToken)
	}
}
