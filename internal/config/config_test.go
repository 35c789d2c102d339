package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PLEDGER_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path == "" {
		t.Error("no default database path")
	}
	if cfg.Sync.PullLimit != 100 {
		t.Errorf("pull limit = %d, want 100", cfg.Sync.PullLimit)
	}
	if cfg.Sync.MaxAttempts != 8 {
		t.Errorf("max attempts = %d, want 8", cfg.Sync.MaxAttempts)
	}
	if cfg.Sync.PollInterval != 15*time.Second {
		t.Errorf("poll interval = %v, want 15s", cfg.Sync.PollInterval)
	}
	if cfg.Remote.DSN != "" {
		t.Errorf("default DSN = %q, want empty", cfg.Remote.DSN)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PLEDGER_CONFIG", "")
	t.Setenv("PLEDGER_REMOTE_DSN", "postgres://example/pledger")
	t.Setenv("PLEDGER_USER_ID", "user-42")
	t.Setenv("PLEDGER_SYNC_PULL_LIMIT", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Remote.DSN != "postgres://example/pledger" {
		t.Errorf("DSN = %q", cfg.Remote.DSN)
	}
	if cfg.User.ID != "user-42" {
		t.Errorf("user id = %q", cfg.User.ID)
	}
	if cfg.Sync.PullLimit != 25 {
		t.Errorf("pull limit = %d, want 25", cfg.Sync.PullLimit)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "config.toml")
	content := `[database]
path = "/tmp/elsewhere.db"

[sync]
max_attempts = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("PLEDGER_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/elsewhere.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Sync.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Sync.MaxAttempts)
	}
	// Unset keys keep their defaults.
	if cfg.Sync.PullLimit != 100 {
		t.Errorf("pull limit = %d, want default 100", cfg.Sync.PullLimit)
	}
}
