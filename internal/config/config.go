// Package config provides TOML configuration file loading and parsing
// for the Ring client. The configuration file lives at
// ~/.ringclient/config.toml by default, but can be overridden with the
// --config flag. CLI flags always take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the client configuration file structure.
// Field names use Go camelCase internally but map to snake_case in
// TOML files via struct tags.
type Config struct {
	// RefreshToken is the serialized credential blob from a previous
	// login. If set, password credentials are not required.
	RefreshToken string `toml:"refresh_token"`

	// Email and Password are account credentials for first-time login.
	Email    string `toml:"email"`
	Password string `toml:"password"`

	// SystemID is a stable identifier used to derive the hardware id
	// deterministically. If empty, the platform system uuid is used.
	SystemID string `toml:"system_id"`

	// DisplayName is reported in session metadata as the device model.
	// Default: ring-client-go
	DisplayName string `toml:"display_name"`

	// CredentialStore is the path to the SQLite database used to
	// persist the credential blob and device snapshots.
	// Default: ~/.ringclient/ringclient.db
	CredentialStore string `toml:"credential_store"`

	// LocationModePollingSeconds enables debounced location mode
	// polling for locations without an alarm base station. Zero
	// disables polling.
	LocationModePollingSeconds int `toml:"location_mode_polling_seconds"`

	// Debug enables verbose request/response logging.
	Debug bool `toml:"debug"`
}

// DefaultConfigPath returns the default config file location:
// ~/.ringclient/config.toml. Returns an error only if the user's home
// directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ringclient", "config.toml"), nil
}

// DefaultStorePath returns the default credential store location:
// ~/.ringclient/ringclient.db.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ringclient", "ringclient.db"), nil
}

// Load reads a TOML config file from the given path and returns a Config.
//
// Behavior:
//   - If path is empty, attempts to load from the default location
//     (~/.ringclient/config.toml). Returns an empty Config without error
//     if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		// No explicit path: try default location, but don't error if missing.
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			// Can't determine home dir, return empty config
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			// Default config doesn't exist, that's fine
			return cfg, nil
		}
		path = defaultPath
	} else {
		// Explicit path provided: error if file doesn't exist.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	// Parse the TOML file. Any parse error is fatal since the user
	// expects the config to be applied.
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.DisplayName == "" {
		cfg.DisplayName = "ring-client-go"
	}

	return cfg, nil
}

// SaveRefreshToken rewrites the refresh_token value in the config file
// at path, creating the file if needed. Used by the auth CLI and by
// credential-update subscribers so a rotated refresh secret survives
// restarts.
func SaveRefreshToken(path, token string) error {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		path = defaultPath
	}

	// Preserve any existing settings; start fresh if the file is
	// missing or unreadable.
	cfg, err := Load(path)
	if err != nil || cfg == nil {
		cfg = &Config{}
	}
	cfg.RefreshToken = token

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
