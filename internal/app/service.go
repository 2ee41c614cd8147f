// Package service implements the SurgiTrack use cases on top of the store,
// the leaderboard board and the attempt event pipeline. It satisfies the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/surgitrack/internal/adapters/auth"
	eventqueue "github.com/okian/surgitrack/internal/adapters/mq/queue"
	workerpool "github.com/okian/surgitrack/internal/adapters/mq/worker"
	"github.com/okian/surgitrack/internal/adapters/repository"
	"github.com/okian/surgitrack/internal/adapters/storage"
	"github.com/okian/surgitrack/internal/domain/dedupe"
	"github.com/okian/surgitrack/pkg/logger"
	"github.com/okian/surgitrack/pkg/metrics"
)

const (
	defaultQueueSize        = 10_000
	defaultDedupeSize       = 50_000
	defaultLeaderboardLimit = 50
	defaultMaxLimit         = 100
	defaultTokenSecret      = "change-me"
	defaultVideoDir         = "videos"
)

// Service wires the use cases together.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	board   *repository.Board
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool
	tokens  *auth.Tokens
	videos  *storage.Local

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	defaultLimit int
	maxLimit     int
	now          func() time.Time

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service over store. Components that need no background
// work (board, deduper) are usable immediately; the event pipeline starts
// with Start.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		workerCount:  runtime.NumCPU(),
		queueSize:    defaultQueueSize,
		dedupeSize:   defaultDedupeSize,
		defaultLimit: defaultLeaderboardLimit,
		maxLimit:     defaultMaxLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.tokens == nil {
		s.tokens = auth.NewTokens(defaultTokenSecret)
	}
	if s.videos == nil {
		s.videos = storage.NewLocal(defaultVideoDir)
	}
	s.board = repository.NewBoard()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start warms the leaderboard from the store and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting surgitrack service...")

	if err := s.warm(ctx); err != nil {
		return err
	}

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.board)
	// Workers outlive the start context; Stop drains them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "surgitrack service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("leaderboardEntries", s.board.Count(ctx)),
	)
	return nil
}

// warm rebuilds the board from the best stored attempts.
func (s *Service) warm(ctx context.Context) error {
	start := time.Now()
	best, err := s.store.BestAttempts(ctx)
	if err != nil {
		return fmt.Errorf("warm leaderboard: %w", err)
	}
	if err := s.board.Load(ctx, best); err != nil {
		return fmt.Errorf("warm leaderboard: %w", err)
	}
	s.logger.Info(ctx, "leaderboard warmed",
		logger.Int("entries", len(best)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Stop closes the event queue and waits for the workers to drain it. The
// store is left open for the caller to close.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping surgitrack service...")
	s.started = false

	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop service: %w", err)
	}
	s.logger.Info(ctx, "surgitrack service stopped",
		logger.Int64("processed", s.pool.Processed()),
	)
	return nil
}

// publish hands a recorded attempt to the workers. Failures only cost
// leaderboard freshness since the attempt is already stored.
func (s *Service) publish(ctx context.Context, e eventqueue.Event) {
	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()

	if !started {
		s.logger.Warn(ctx, "service not started, applying attempt inline",
			logger.Int64("attempt_id", e.AttemptID))
		if _, err := s.board.UpdateBest(ctx, e.Entry()); err != nil {
			s.logger.Error(ctx, "inline leaderboard update failed", logger.Error(err))
		}
		return
	}

	if err := q.Enqueue(context.WithoutCancel(ctx), e); err != nil {
		metrics.RecordErrorByComponent("service", "enqueue_failed")
		s.logger.Warn(ctx, "attempt event not queued",
			logger.Int64("attempt_id", e.AttemptID),
			logger.Error(err),
		)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":            s.started,
		"workerCount":        s.workerCount,
		"queueSize":          s.queueSize,
		"dedupeSize":         s.dedupeSize,
		"dedupeEntries":      s.deduper.Size(),
		"leaderboardEntries": s.board.Count(ctx),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["processed"] = s.pool.Processed()

		metrics.UpdateQueueSize(queueLen, s.queue.Capacity())
		metrics.UpdateLeaderboardEntries(s.board.Count(ctx))
	}

	return stats
}
