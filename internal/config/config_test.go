package config_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"versemate-sync/internal/config"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := config.NewConfig("/home/user/.local/share/vmsync")

	if cfg.API.BaseURL != "https://api.versemate.org" {
		t.Errorf("base URL = %s, expected the production API", cfg.API.BaseURL)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("database type = %s, expected sqlite", cfg.Database.Type)
	}
	if cfg.Database.DataDir != filepath.Join(cfg.BaseDir, "data") {
		t.Errorf("data dir = %s, expected it under the base dir", cfg.Database.DataDir)
	}
	if cfg.Sync.StalenessHours != 24 {
		t.Errorf("staleness = %d hours, expected 24", cfg.Sync.StalenessHours)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := config.NewConfig("/tmp/vmsync")
	cfg.API.BaseURL = "https://staging.versemate.org"
	cfg.Sync.StalenessHours = 6

	var buf bytes.Buffer
	m := &config.Manager{}
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if got.API.BaseURL != "https://staging.versemate.org" {
		t.Errorf("base URL = %s, expected the written value", got.API.BaseURL)
	}
	if got.Sync.StalenessHours != 6 {
		t.Errorf("staleness = %d hours, expected 6", got.Sync.StalenessHours)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("database type = %s, expected sqlite", got.Database.Type)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmsync.toml")
	cfg := config.NewConfig("/tmp/vmsync")

	if err := config.Init(path, cfg); err != nil {
		t.Fatalf("failed to init config: %v", err)
	}

	got, err := config.ReadFromFile(path)
	if err != nil {
		t.Fatalf("failed to read config back: %v", err)
	}
	if got.API.BaseURL != cfg.API.BaseURL {
		t.Errorf("base URL = %s, expected %s", got.API.BaseURL, cfg.API.BaseURL)
	}

	// A second init must not clobber the existing file.
	if err := config.Init(path, cfg); err == nil {
		t.Error("expected init to refuse overwriting an existing config")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmsync.toml")
	if err := config.Init(path, config.NewConfig("/tmp/vmsync")); err != nil {
		t.Fatalf("failed to init config: %v", err)
	}

	t.Setenv("VMSYNC_API_URL", "http://localhost:8080")
	t.Setenv("VMSYNC_DATA_DIR", "/tmp/override-data")

	cfg, err := config.ReadFromFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Errorf("base URL = %s, expected the environment override", cfg.API.BaseURL)
	}
	if cfg.Database.DataDir != "/tmp/override-data" {
		t.Errorf("data dir = %s, expected the environment override", cfg.Database.DataDir)
	}
}
