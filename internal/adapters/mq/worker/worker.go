// Package worker applies recorded attempts to the leaderboard.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/surgitrack/internal/adapters/mq/queue"
	"github.com/okian/surgitrack/internal/domain/model"
	"github.com/okian/surgitrack/pkg/logger"
	"github.com/okian/surgitrack/pkg/metrics"
)

const defaultShutdownTimeout = 30 * time.Second

// Event is what workers read off the queue.
type Event = queue.Event

// Updater records a candidate best entry.
type Updater interface {
	UpdateBest(ctx context.Context, e model.LeaderboardEntry) (bool, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// InMemoryWorker drains events from a queue into an Updater.
type InMemoryWorker struct {
	queue   Queue
	updater Updater
	name    string
	logger  logger.Logger

	processed *atomic.Int64
	done      chan struct{}
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		updater:   updater,
		name:      "worker",
		processed: new(atomic.Int64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes events until the queue is closed and drained or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for e := range w.queue.Dequeue(ctx) {
		if err := w.processEvent(ctx, e); err != nil {
			w.logger.Error(ctx, "error processing event", logger.Error(err))
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) processEvent(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event is passed by value through the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	updated, err := w.updater.UpdateBest(ctx, e.Entry())
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "leaderboard_error")
		return fmt.Errorf("leaderboard update for attempt %d: %w", e.AttemptID, err)
	}
	w.processed.Add(1)
	if updated {
		w.logger.Debug(ctx, "leaderboard improved",
			logger.Int64("attempt_id", e.AttemptID),
			logger.Int64("user_id", e.UserID),
			logger.Int64("task_id", e.TaskID),
			logger.Int("score", e.Score),
		)
	}
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed *atomic.Int64
	logger    logger.Logger

	startOnce sync.Once
}

// NewPool creates a pool of workerCount workers. Counts below one become one.
func NewPool(workerCount int, q Queue, updater Updater, opts ...Option) *Pool {
	workerCount = max(workerCount, 1)
	p := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		processed: new(atomic.Int64),
		logger:    logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, updater, wopts...)
		w.processed = p.processed
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches every worker. Calling it again has no effect.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			go w.Run(ctx)
		}
		p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
	})
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns how many events the pool has applied.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// Shutdown closes the queue and waits for workers to drain it. The wait is
// bounded by ctx and a 30s ceiling.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
