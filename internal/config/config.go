// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ericfisherdev/lockbox/internal/crypto"
)

// Backend names the credential store implementation.
type Backend string

// Supported credential store backends.
const (
	BackendSQLite Backend = "sqlite"
	BackendBolt   Backend = "bolt"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath      string
	Backend     Backend
	Cipher      crypto.Suite
	LockTimeout time.Duration
	ListenAddr  string
	APIToken    string

	SyncRepo      string
	SyncPath      string
	SyncTokenFile string
	SyncBranch    string

	LogLevel  slog.Level
	LogFormat string
}

// SyncEnabled reports whether remote sync is configured. Load guarantees a
// token file is present whenever a repository is.
func (c *Config) SyncEnabled() bool {
	return c.SyncRepo != ""
}

// ValidateServe checks the settings that serve mode needs on top of Load's
// validation. Call it before prompting for the passphrase.
func (c *Config) ValidateServe() error {
	if c.APIToken == "" {
		return fmt.Errorf("LOCKBOX_API_TOKEN is required in serve mode")
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional. Defaults: LOCKBOX_DB_PATH (lockbox.db),
// LOCKBOX_BACKEND (sqlite), LOCKBOX_CIPHER (aes-gcm), LOCKBOX_LOCK_TIMEOUT (5s),
// LOCKBOX_LISTEN_ADDR (127.0.0.1:8750), LOCKBOX_SYNC_PATH (lockbox.db),
// LOCKBOX_LOG_LEVEL (info), LOCKBOX_LOG_FORMAT (text).
// LOCKBOX_SYNC_REPO enables remote sync and then requires LOCKBOX_SYNC_TOKEN_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:      "lockbox.db",
		Backend:     BackendSQLite,
		Cipher:      crypto.DefaultSuite,
		LockTimeout: 5 * time.Second,
		ListenAddr:  "127.0.0.1:8750",
		SyncPath:    "lockbox.db",
		LogLevel:    slog.LevelInfo,
		LogFormat:   LogFormatText,
	}

	if v, ok := os.LookupEnv("LOCKBOX_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("LOCKBOX_BACKEND"); ok && v != "" {
		switch b := Backend(strings.ToLower(v)); b {
		case BackendSQLite, BackendBolt:
			cfg.Backend = b
		default:
			return nil, fmt.Errorf("LOCKBOX_BACKEND has invalid value %q: expected sqlite or bolt", v)
		}
	}

	if v, ok := os.LookupEnv("LOCKBOX_CIPHER"); ok && v != "" {
		suite, err := crypto.ParseSuite(strings.ToLower(v))
		if err != nil {
			return nil, fmt.Errorf("LOCKBOX_CIPHER has invalid value %q: %w", v, err)
		}
		cfg.Cipher = suite
	}

	if v, ok := os.LookupEnv("LOCKBOX_LOCK_TIMEOUT"); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("LOCKBOX_LOCK_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("LOCKBOX_LOCK_TIMEOUT must be positive, got %s", parsed)
		}
		cfg.LockTimeout = parsed
	}

	if v, ok := os.LookupEnv("LOCKBOX_LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}
	cfg.APIToken = os.Getenv("LOCKBOX_API_TOKEN")

	cfg.SyncRepo = strings.TrimSpace(os.Getenv("LOCKBOX_SYNC_REPO"))
	if v, ok := os.LookupEnv("LOCKBOX_SYNC_PATH"); ok && v != "" {
		cfg.SyncPath = v
	}
	cfg.SyncTokenFile = os.Getenv("LOCKBOX_SYNC_TOKEN_FILE")
	cfg.SyncBranch = os.Getenv("LOCKBOX_SYNC_BRANCH")

	if cfg.SyncRepo != "" {
		owner, repo, ok := strings.Cut(cfg.SyncRepo, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return nil, fmt.Errorf("LOCKBOX_SYNC_REPO has invalid value %q: expected owner/repo", cfg.SyncRepo)
		}
		if cfg.SyncTokenFile == "" {
			return nil, fmt.Errorf("LOCKBOX_SYNC_TOKEN_FILE is required when LOCKBOX_SYNC_REPO is set")
		}
	}

	if v, ok := os.LookupEnv("LOCKBOX_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("LOCKBOX_LOG_LEVEL has invalid value %q: %w", v, err)
		}
	}

	if v, ok := os.LookupEnv("LOCKBOX_LOG_FORMAT"); ok && v != "" {
		switch f := strings.ToLower(v); f {
		case LogFormatText, LogFormatJSON:
			cfg.LogFormat = f
		default:
			return nil, fmt.Errorf("LOCKBOX_LOG_FORMAT has invalid value %q: expected text or json", v)
		}
	}

	return cfg, nil
}
