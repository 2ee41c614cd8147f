// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a YAML file and environment variables over those defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects "text" or "json" log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// DatabaseURL is the SQLite DSN or file path.
	DatabaseURL string `koanf:"database_url"`

	// JWTSecret signs access tokens.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTLMinutes sets access token lifetime.
	TokenTTLMinutes int `koanf:"token_ttl_minutes"`

	// VideoDir is where uploaded attempt videos are written.
	VideoDir string `koanf:"video_dir"`

	// MaxUploadBytes bounds a single video upload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// EventQueueSize bounds the in-memory attempt event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of leaderboard workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// LeaderboardLimit is the default page size of GET /leaderboard/global.
	LeaderboardLimit int `koanf:"leaderboard_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard/global?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// SeedOnStart seeds the task catalog when the server starts.
	SeedOnStart bool `koanf:"seed_on_start"`
}

// DefaultJWTSecret is the placeholder signing secret. Deployments must
// override it.
const DefaultJWTSecret = "change-me"

// InsecureSecret reports whether tokens are still signed with the
// placeholder secret.
func (c *Config) InsecureSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":8000",
		DatabaseURL:         "surgitrack.db",
		JWTSecret:           DefaultJWTSecret,
		TokenTTLMinutes:     60,
		VideoDir:            "videos",
		MaxUploadBytes:      200 << 20,
		EventQueueSize:      10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		LeaderboardLimit:    50,
		MaxLeaderboardLimit: 100,
		SeedOnStart:         true,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.DatabaseURL == "":
		return invalid("database_url must not be empty")
	case c.JWTSecret == "":
		return invalid("jwt_secret must not be empty")
	case c.TokenTTLMinutes <= 0:
		return invalid("token_ttl_minutes must be positive")
	case c.EventQueueSize <= 0:
		return invalid("queue_size must be positive")
	case c.WorkerCount <= 0:
		return invalid("worker_count must be positive")
	case c.LeaderboardLimit <= 0:
		return invalid("leaderboard_limit must be positive")
	case c.MaxLeaderboardLimit < c.LeaderboardLimit:
		return invalid("max_leaderboard_limit must be >= leaderboard_limit")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json")
	}
	return nil
}
