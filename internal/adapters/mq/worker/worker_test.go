package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/surgitrack/internal/adapters/mq/queue"
	"github.com/okian/surgitrack/internal/adapters/mq/worker"
	"github.com/okian/surgitrack/internal/adapters/repository"
	"github.com/okian/surgitrack/internal/domain/model"
	logging "github.com/okian/surgitrack/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockUpdater struct {
	mu      sync.Mutex
	updates map[int64]model.LeaderboardEntry
	failFor map[int64]error
}

func newMockUpdater() *mockUpdater {
	return &mockUpdater{
		updates: make(map[int64]model.LeaderboardEntry),
		failFor: make(map[int64]error),
	}
}

func (m *mockUpdater) UpdateBest(_ context.Context, e model.LeaderboardEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[e.AttemptID]; ok {
		return false, err
	}
	m.updates[e.AttemptID] = e
	return true, nil
}

func (m *mockUpdater) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

func (m *mockUpdater) get(id int64) (model.LeaderboardEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.updates[id]
	return e, ok
}

func recorded(attemptID, userID int64, score int) model.AttemptRecorded {
	return model.AttemptRecorded{
		AttemptID: attemptID, UserID: userID, UserEmail: "u@example.com",
		TaskID: 1, TaskName: "Peg Transfer", Score: score, TimeSeconds: 120,
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		updater := newMockUpdater()
		w := worker.NewInMemoryWorker(q, updater, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When an attempt is recorded", func() {
			convey.So(q.Enqueue(ctx, recorded(7, 3, 88)), convey.ShouldBeNil)

			convey.Convey("Then its leaderboard entry reaches the updater", func() {
				convey.So(waitFor(func() bool { return updater.count() == 1 }), convey.ShouldBeTrue)
				e, ok := updater.get(7)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(e.UserID, convey.ShouldEqual, 3)
				convey.So(e.Score, convey.ShouldEqual, 88)
				convey.So(e.TaskName, convey.ShouldEqual, "Peg Transfer")
			})
		})

		convey.Convey("When the updater fails for one event", func() {
			updater.mu.Lock()
			updater.failFor[1] = errors.New("boom")
			updater.mu.Unlock()

			_ = q.Enqueue(ctx, recorded(1, 1, 50))
			_ = q.Enqueue(ctx, recorded(2, 1, 60))

			convey.Convey("Then the worker keeps processing", func() {
				convey.So(waitFor(func() bool { return updater.count() == 1 }), convey.ShouldBeTrue)
				_, ok := updater.get(2)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool applying events to a real board", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		board := repository.NewBoard()
		pool := worker.NewPool(4, q, board)
		ctx := context.Background()
		pool.Start(ctx)
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many attempts are queued and the pool shuts down", func() {
			for i := int64(1); i <= 200; i++ {
				convey.So(q.Enqueue(ctx, recorded(i, i%20, int(i%101))), convey.ShouldBeNil)
			}
			err := pool.Shutdown(ctx)

			convey.Convey("Then every queued event is applied before shutdown returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Processed(), convey.ShouldEqual, 200)
				convey.So(board.Count(ctx), convey.ShouldEqual, 20)
			})

			convey.Convey("Then the queue rejects new events", func() {
				convey.So(errors.Is(q.Enqueue(ctx, recorded(999, 1, 1)), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with a non-positive size", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockUpdater())

		convey.Convey("Then it runs a single worker", func() {
			convey.So(pool.Size(), convey.ShouldEqual, 1)
		})
	})
}

type stuckUpdater struct{ release chan struct{} }

func (s stuckUpdater) UpdateBest(_ context.Context, _ model.LeaderboardEntry) (bool, error) {
	<-s.release
	return true, nil
}

func TestWorkerPoolShutdownTimeout(t *testing.T) {
	convey.Convey("Given a pool whose updater blocks", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue()
		stuck := stuckUpdater{release: make(chan struct{})}
		defer close(stuck.release)
		pool := worker.NewPool(1, q, stuck)
		pool.Start(context.Background())
		_ = q.Enqueue(context.Background(), recorded(1, 1, 1))

		convey.Convey("When shutdown is bounded by a short deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(ctx)

			convey.Convey("Then it reports the timeout", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}
