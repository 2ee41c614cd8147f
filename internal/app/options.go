package service

import (
	"time"

	"github.com/okian/surgitrack/internal/adapters/auth"
	"github.com/okian/surgitrack/internal/adapters/storage"
	"github.com/okian/surgitrack/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of leaderboard worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the attempt event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLeaderboardLimits sets the default and maximum leaderboard page size.
// Pairs where def exceeds maxLimit are ignored.
func WithLeaderboardLimits(def, maxLimit int) Option {
	return func(s *Service) {
		if def > 0 && maxLimit >= def {
			s.defaultLimit = def
			s.maxLimit = maxLimit
		}
	}
}

// WithTokens sets the access token issuer.
func WithTokens(t *auth.Tokens) Option {
	return func(s *Service) {
		if t != nil {
			s.tokens = t
		}
	}
}

// WithVideoStorage sets where attempt videos are written.
func WithVideoStorage(l *storage.Local) Option {
	return func(s *Service) {
		if l != nil {
			s.videos = l
		}
	}
}

// WithClock overrides the time source used for recorded events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
