// Package simulate drives a running SurgiTrack API with synthetic trainees
// and checks that the resulting leaderboard is consistently ranked.
package simulate

import (
	"errors"
	"runtime"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Users    int           // Number of synthetic trainees to register
	Attempts int           // Number of attempts to submit across all users
	Workers  int           // Number of concurrent submitters
	TopN     int           // Leaderboard entries to fetch and verify
	Timeout  time.Duration // HTTP request timeout
	Settle   time.Duration // Wait after submission before reading the leaderboard
	// RetryRatio is the share of attempts resubmitted with the same
	// idempotency key; every retry must be rejected as a duplicate.
	RetryRatio float64
	Seed       uint64 // Seed for attempt generation; zero picks a random one
}

// DefaultConfig returns a Config suitable for a local server.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8000",
		Users:      20,
		Attempts:   500,
		Workers:    runtime.NumCPU() * 2,
		TopN:       50,
		Timeout:    30 * time.Second,
		Settle:     2 * time.Second,
		RetryRatio: 0.05,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url must not be empty")
	case c.Users < 1:
		return errors.New("users must be positive")
	case c.Attempts < 0:
		return errors.New("attempts must not be negative")
	case c.Workers < 1:
		return errors.New("workers must be positive")
	case c.TopN < 1:
		return errors.New("top must be positive")
	case c.Timeout <= 0:
		return errors.New("timeout must be positive")
	case c.RetryRatio < 0 || c.RetryRatio > 1:
		return errors.New("retry ratio must be within [0,1]")
	}
	return nil
}

// Stats holds the outcome of a run.
type Stats struct {
	UsersRegistered    int
	AttemptsGenerated  int
	AttemptsSubmitted  int
	AttemptsSuccessful int
	AttemptsDuplicate  int
	AttemptsFailed     int
	Proficient         int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
