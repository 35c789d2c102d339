// Package config loads pledger's configuration from file and
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Remote   RemoteConfig
	User     UserConfig
	Sync     SyncConfig
	Log      LogConfig
}

// DatabaseConfig holds local sqlite settings.
type DatabaseConfig struct {
	Path string
}

// RemoteConfig holds the remote Postgres settings. An empty DSN means
// fully local operation; sync commands will report offline.
type RemoteConfig struct {
	DSN string
}

// UserConfig identifies whose data this device holds.
type UserConfig struct {
	ID string
}

// SyncConfig tunes the sync engine and daemon.
type SyncConfig struct {
	PullLimit    int
	MaxAttempts  int
	PollInterval time.Duration
	ResyncEvery  time.Duration
}

// LogConfig holds log file settings. An empty path logs to stderr.
type LogConfig struct {
	Path string
}

// Load reads configuration from file and env. A .env file in the
// working directory is loaded first; env var overrides use prefix
// PLEDGER_ (e.g. PLEDGER_REMOTE_DSN).
func Load() (Config, error) {
	// .env is optional and only fills in unset variables.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "pledger", "pledger.db"))
	v.SetDefault("remote.dsn", "")
	v.SetDefault("user.id", "")
	v.SetDefault("sync.pull_limit", 100)
	v.SetDefault("sync.max_attempts", 8)
	v.SetDefault("sync.poll_interval", 15*time.Second)
	v.SetDefault("sync.resync_every", 5*time.Minute)
	v.SetDefault("log.path", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("PLEDGER_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "pledger"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PLEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
