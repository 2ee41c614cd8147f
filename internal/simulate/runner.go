package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/surgitrack/pkg/logger"
)

const (
	emailDomain      = "surgitrack.test"
	progressInterval = time.Second
)

// ErrIdempotency is returned when a retried attempt was accepted twice.
var ErrIdempotency = errors.New("retried attempt was accepted twice")

type trainee struct {
	email string
	token string
}

// Run executes a complete simulation against cfg.BaseURL.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if err := cfg.Validate(); err != nil {
		return stats, fmt.Errorf("invalid config: %w", err)
	}
	log := logger.Get().Named("simulate")
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("attempts", cfg.Attempts),
		logger.Int("workers", cfg.Workers))

	if err := c.get(ctx, "/healthz", "", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	cat, err := loadCatalog(ctx, c)
	if err != nil {
		return stats, fmt.Errorf("catalog retrieval failed: %w", err)
	}

	trainees, err := registerTrainees(ctx, c, cfg)
	if err != nil {
		return stats, fmt.Errorf("registration failed: %w", err)
	}
	stats.UsersRegistered = len(trainees)

	gen := newGenerator(cfg.Seed, cat)
	jobs := gen.jobs(cfg.Attempts, len(trainees), cfg.RetryRatio)
	stats.AttemptsGenerated = len(jobs)

	// Originals go first so every retry finds its key taken.
	originals, retries := split(jobs)
	submit(ctx, c, cfg, trainees, originals, &stats, log)
	reaccepted := submit(ctx, c, cfg, trainees, retries, &stats, log)

	log.Info(ctx, "attempts submitted",
		logger.Int("successful", stats.AttemptsSuccessful),
		logger.Int("duplicate", stats.AttemptsDuplicate),
		logger.Int("failed", stats.AttemptsFailed),
		logger.Int("proficient", stats.Proficient))

	select {
	case <-ctx.Done():
		return stats, ctx.Err()
	case <-time.After(cfg.Settle):
	}

	var board []Entry
	if err := c.get(ctx, fmt.Sprintf("/leaderboard/global?limit=%d", cfg.TopN), "", &board); err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(board)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if err := VerifyLeaderboard(board); err != nil {
		return stats, fmt.Errorf("leaderboard verification failed: %w", err)
	}
	if reaccepted > 0 {
		return stats, fmt.Errorf("%w: %d times", ErrIdempotency, reaccepted)
	}

	log.Info(ctx, "simulation completed",
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

func split(jobs []job) (originals, retries []job) {
	for _, j := range jobs {
		if j.Retry {
			retries = append(retries, j)
			continue
		}
		originals = append(originals, j)
	}
	return originals, retries
}

// loadCatalog fetches tasks, the first standard of each and all error types.
func loadCatalog(ctx context.Context, c *client) (*catalog, error) {
	var tasks []task
	if err := c.get(ctx, "/tasks", "", &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	standards := make(map[int64]standard, len(tasks))
	for _, t := range tasks {
		var stds []standard
		if err := c.get(ctx, fmt.Sprintf("/tasks/%d/standards", t.ID), "", &stds); err != nil {
			return nil, fmt.Errorf("list standards of %s: %w", t.Slug, err)
		}
		if len(stds) > 0 {
			standards[t.ID] = stds[0]
		}
	}
	var errs []errorType
	if err := c.get(ctx, "/error-types", "", &errs); err != nil {
		return nil, fmt.Errorf("list error types: %w", err)
	}

	cat := newCatalog(tasks, standards, errs)
	if len(cat.tasks) == 0 {
		return nil, errors.New("no task has a standard; seed the catalog first")
	}
	return cat, nil
}

// registerTrainees creates cfg.Users accounts and logs each one in.
func registerTrainees(ctx context.Context, c *client, cfg Config) ([]trainee, error) {
	out := make([]trainee, cfg.Users)
	errs := make([]error, cfg.Users)

	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.Workers)
	for i := range out {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer func() { <-sem; wg.Done() }()

			email := fmt.Sprintf("sim-%s@%s", uuid.NewString(), emailDomain)
			password := uuid.NewString()
			body := map[string]string{
				"email":     email,
				"password":  password,
				"full_name": fmt.Sprintf("Trainee %d", i+1),
			}
			if err := c.postJSON(ctx, "/auth/register", "", nil, body, http.StatusCreated, nil); err != nil {
				errs[i] = fmt.Errorf("register %s: %w", email, err)
				return
			}
			token, err := c.login(ctx, email, password)
			if err != nil {
				errs[i] = fmt.Errorf("login %s: %w", email, err)
				return
			}
			out[i] = trainee{email: email, token: token}
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// submit posts jobs with cfg.Workers workers and folds the outcomes into
// stats. It returns the number of jobs the server accepted.
func submit(ctx context.Context, c *client, cfg Config, trainees []trainee, jobs []job, stats *Stats, log logger.Logger) int {
	var (
		submitted  int64
		successful int64
		duplicate  int64
		failed     int64
		proficient int64
	)

	ch := make(chan job, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				if ctx.Err() != nil {
					return
				}
				var res struct {
					Proficiency bool `json:"proficiency"`
				}
				headers := map[string]string{"Idempotency-Key": j.Key}
				err := c.postJSON(ctx, "/attempts", trainees[j.User].token, headers, j.Body, http.StatusCreated, &res)

				atomic.AddInt64(&submitted, 1)
				var se *statusError
				switch {
				case err == nil:
					atomic.AddInt64(&successful, 1)
					if res.Proficiency {
						atomic.AddInt64(&proficient, 1)
					}
				case errors.As(err, &se) && se.Code == http.StatusConflict:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
					log.Debug(ctx, "attempt rejected", logger.String("user", trainees[j.User].email), logger.Error(err))
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(progressInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				log.Info(ctx, "progress",
					logger.Int64("submitted", atomic.LoadInt64(&submitted)),
					logger.Int("total", len(jobs)))
			}
		}
	}()

feed:
	for _, j := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case ch <- j:
		}
	}
	close(ch)
	wg.Wait()
	close(done)

	stats.AttemptsSubmitted += int(submitted)
	stats.AttemptsSuccessful += int(successful)
	stats.AttemptsDuplicate += int(duplicate)
	stats.AttemptsFailed += int(failed)
	stats.Proficient += int(proficient)
	return int(successful)
}
