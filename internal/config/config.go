// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the LocalManus client.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. Default location: ~/.localmanus/config.toml. The config file is
// watchable (see Watch) so a token or backend change takes effect without a
// restart; the session controller receives the new values explicitly and
// never reads ambient state itself.
package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	// Backend connection
	Backend BackendConfig `toml:"backend"`

	// UI behavior
	UI UIConfig `toml:"ui"`

	// Logging
	Log LogConfig `toml:"log"`
}

// BackendConfig contains connection settings for the agent backend.
type BackendConfig struct {
	// BaseURL is the backend base URL
	BaseURL string `toml:"base_url"`
	// AccessToken is the bearer credential. Prefer the encrypted credential
	// file over storing it here in plaintext.
	AccessToken string `toml:"access_token"`
	// ConnectTimeoutSecs bounds connection establishment for the stream
	ConnectTimeoutSecs int `toml:"connect_timeout_secs"`
	// UploadTimeoutSecs bounds the whole file upload request
	UploadTimeoutSecs int `toml:"upload_timeout_secs"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Markdown enables glamour rendering of agent answers
	Markdown bool `toml:"markdown"`
	// MaxFPS caps transcript redraws while streaming
	MaxFPS int `toml:"max_fps"`
	// Theme is "dark", "light", or "auto"
	Theme string `toml:"theme"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Path of the log file (empty = ~/.localmanus/client.log)
	Path string `toml:"path"`
	// Level is "debug", "info", "warn", or "error"
	Level string `toml:"level"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:            "http://127.0.0.1:8000",
			ConnectTimeoutSecs: 10,
			UploadTimeoutSecs:  60,
		},
		UI: UIConfig{
			Markdown: true,
			MaxFPS:   30,
			Theme:    "auto",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Dir returns the client's dot directory, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".localmanus")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from the given path, falling back to defaults
// when the file does not exist, then applies environment overrides and
// validates. A present-but-broken file is an error; silently ignoring it
// would send requests to the wrong backend.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults + env only.
	case err != nil:
		return cfg, err
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOCALMANUS_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("LOCALMANUS_ACCESS_TOKEN"); v != "" {
		c.Backend.AccessToken = v
	}
	if v := os.Getenv("LOCALMANUS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOCALMANUS_MAX_FPS"); v != "" {
		if fps, err := strconv.Atoi(v); err == nil {
			c.UI.MaxFPS = fps
		}
	}
}

// fillDefaults replaces zero values left by a sparse file.
func (c *Config) fillDefaults() {
	defaults := DefaultConfig()
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaults.Backend.BaseURL
	}
	if c.Backend.ConnectTimeoutSecs <= 0 {
		c.Backend.ConnectTimeoutSecs = defaults.Backend.ConnectTimeoutSecs
	}
	if c.Backend.UploadTimeoutSecs <= 0 {
		c.Backend.UploadTimeoutSecs = defaults.Backend.UploadTimeoutSecs
	}
	if c.UI.MaxFPS <= 0 || c.UI.MaxFPS > 60 {
		c.UI.MaxFPS = defaults.UI.MaxFPS
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return errors.New("invalid backend base_url: " + err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("backend base_url must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("backend base_url has no host")
	}

	switch c.UI.Theme {
	case "auto", "dark", "light":
	default:
		return errors.New("ui theme must be auto, dark, or light")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log level must be debug, info, warn, or error")
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// ConnectTimeout returns the connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Backend.ConnectTimeoutSecs) * time.Second
}

// UploadTimeout returns the upload timeout as a duration.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Backend.UploadTimeoutSecs) * time.Second
}

// LogPath returns the configured log file path or the default.
func (c *Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "client.log"), nil
}
