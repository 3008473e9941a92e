// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// LOADING TESTS
// =============================================================================

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("base url: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.ConnectTimeoutSecs != 10 {
		t.Errorf("connect timeout: %d", cfg.Backend.ConnectTimeoutSecs)
	}
	if !cfg.UI.Markdown {
		t.Error("markdown should default on")
	}
}

func TestLoadPartialFileKeepsDefaultsElsewhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[backend]\nbase_url = \"http://10.0.0.5:9000\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("base url: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.UploadTimeoutSecs != 60 {
		t.Errorf("upload timeout should stay default, got %d", cfg.Backend.UploadTimeoutSecs)
	}
	if cfg.UI.Theme != "auto" {
		t.Errorf("theme should stay default, got %q", cfg.UI.Theme)
	}
}

func TestLoadBrokenFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[backend\nnot toml"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error for broken file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[backend]\nbase_url = \"http://file-value:8000\"\naccess_token = \"from-file\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LOCALMANUS_BASE_URL", "http://env-value:8000")
	t.Setenv("LOCALMANUS_ACCESS_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://env-value:8000" {
		t.Errorf("env should win: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.AccessToken != "from-env" {
		t.Errorf("env should win: %q", cfg.Backend.AccessToken)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"ftp scheme", func(c *Config) { c.Backend.BaseURL = "ftp://host" }, true},
		{"no host", func(c *Config) { c.Backend.BaseURL = "http://" }, true},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }, true},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"https ok", func(c *Config) { c.Backend.BaseURL = "https://manus.example.com" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeoutDerivation(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ConnectTimeout().Seconds() != 10 {
		t.Errorf("connect timeout: %v", cfg.ConnectTimeout())
	}
	if cfg.UploadTimeout().Seconds() != 60 {
		t.Errorf("upload timeout: %v", cfg.UploadTimeout())
	}
}
