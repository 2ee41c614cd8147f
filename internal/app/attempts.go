package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okian/surgitrack/internal/adapters/storage"
	"github.com/okian/surgitrack/internal/domain/model"
	"github.com/okian/surgitrack/internal/domain/scoring"
	"github.com/okian/surgitrack/pkg/logger"
	"github.com/okian/surgitrack/pkg/metrics"
)

// AttemptInput is a submitted attempt. ErrorTypeIDs lists the logged error
// types; repeats collapse into one observation.
type AttemptInput struct {
	TaskID         int64
	StandardID     int64
	StartedAt      time.Time
	EndedAt        time.Time
	ErrorTypeIDs   []int64
	IdempotencyKey string
}

// VideoUpload is a received attempt recording.
type VideoUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// CreateAttempt scores and stores an attempt for user, then hands it to the
// leaderboard workers.
func (s *Service) CreateAttempt(ctx context.Context, user model.User, in AttemptInput) (_ model.Attempt, err error) {
	if in.IdempotencyKey != "" {
		key := strconv.FormatInt(user.ID, 10) + ":" + in.IdempotencyKey
		if s.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordAttemptDuplicate()
			return model.Attempt{}, fmt.Errorf("idempotency key %q: %w", in.IdempotencyKey, ErrDuplicate)
		}
		defer func() {
			if err != nil {
				s.deduper.Unrecord(ctx, key)
			}
		}()
	}

	task, err := s.store.TaskByID(ctx, in.TaskID)
	if err != nil {
		return model.Attempt{}, translate("task or standard", err)
	}
	std, err := s.store.StandardByID(ctx, in.StandardID)
	if err != nil {
		return model.Attempt{}, translate("task or standard", err)
	}
	if std.TaskID != task.ID {
		return model.Attempt{}, invalid("standard does not belong to task")
	}
	if !in.EndedAt.After(in.StartedAt) {
		return model.Attempt{}, invalid("ended_at must be after started_at")
	}
	timeSeconds := int(in.EndedAt.Sub(in.StartedAt) / time.Second)

	observed, err := s.resolveErrors(ctx, in.ErrorTypeIDs)
	if err != nil {
		return model.Attempt{}, err
	}
	severities := make([]scoring.Severity, len(observed))
	for i, e := range observed {
		severities[i] = e.Severity
	}
	res := scoring.Score(timeSeconds, std.Scoring(), severities)

	attempt, err := s.store.CreateAttempt(ctx, model.Attempt{
		UserID:      user.ID,
		TaskID:      task.ID,
		StandardID:  std.ID,
		StartedAt:   in.StartedAt,
		EndedAt:     in.EndedAt,
		TimeSeconds: timeSeconds,
		Score:       res.Score,
		Proficient:  res.Proficient,
		Errors:      observed,
	})
	if err != nil {
		metrics.RecordErrorByComponent("service", "attempt_store")
		return model.Attempt{}, translate("create attempt", err)
	}

	c := scoring.Tally(severities)
	metrics.RecordAttempt(res.Score, res.Proficient, c.Minor, c.Major, c.Critical)
	s.logger.Debug(ctx, "attempt recorded",
		logger.Int64("attempt_id", attempt.ID),
		logger.Int64("user_id", user.ID),
		logger.Int64("task_id", task.ID),
		logger.Int("score", res.Score),
		logger.Bool("proficient", res.Proficient),
	)

	s.publish(ctx, model.AttemptRecorded{
		AttemptID:   attempt.ID,
		UserID:      user.ID,
		UserEmail:   user.Email,
		TaskID:      task.ID,
		TaskName:    task.Name,
		Score:       attempt.Score,
		TimeSeconds: attempt.TimeSeconds,
		Proficient:  attempt.Proficient,
		RecordedAt:  s.now(),
	})
	return attempt, nil
}

// resolveErrors maps submitted ids to error types, one entry per distinct id
// in first-seen order. Ids without an error type are skipped.
func (s *Service) resolveErrors(ctx context.Context, ids []int64) ([]model.ErrorType, error) {
	distinct := uniqueIDs(ids)
	out := make([]model.ErrorType, 0, len(distinct))
	if len(distinct) == 0 {
		return out, nil
	}
	known, err := s.store.ErrorTypesByIDs(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("load error types: %w", err)
	}
	for _, id := range distinct {
		if e, ok := known[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// uniqueIDs drops repeats and non-positive ids, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id < 1 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ListAttempts returns the user's attempts, newest first.
func (s *Service) ListAttempts(ctx context.Context, user model.User) ([]model.Attempt, error) {
	attempts, err := s.store.AttemptsByUser(ctx, user.ID)
	if err != nil {
		return nil, translate("list attempts", err)
	}
	return attempts, nil
}

// Summary returns the user's best results per task.
func (s *Service) Summary(ctx context.Context, user model.User) (model.UserSummary, error) {
	details, err := s.store.TaskSummaries(ctx, user.ID)
	if err != nil {
		return model.UserSummary{}, translate("summary", err)
	}
	sum := model.UserSummary{TotalTasks: len(details), TaskDetails: details}
	for _, d := range details {
		if d.Proficient {
			sum.ProficientTasks++
		}
	}
	return sum, nil
}

// ownedAttempt loads an attempt that belongs to user. Attempts of other
// users are reported as missing.
func (s *Service) ownedAttempt(ctx context.Context, user model.User, attemptID int64) (model.Attempt, error) {
	a, err := s.store.AttemptByID(ctx, attemptID)
	if err != nil {
		return model.Attempt{}, translate("attempt", err)
	}
	if a.UserID != user.ID {
		return model.Attempt{}, notFound("attempt")
	}
	return a, nil
}

// AttachVideo stores an uploaded recording for an attempt owned by user.
func (s *Service) AttachVideo(ctx context.Context, user model.User, attemptID int64, up VideoUpload) (model.Video, error) {
	a, err := s.ownedAttempt(ctx, user, attemptID)
	if err != nil {
		return model.Video{}, err
	}

	obj, err := s.videos.Save(ctx, a.ID, up.Filename, up.Body)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return model.Video{}, invalid(err.Error())
		}
		metrics.RecordErrorByComponent("service", "video_store")
		return model.Video{}, fmt.Errorf("save video: %w", err)
	}

	v, err := s.store.CreateVideo(ctx, model.Video{
		AttemptID:   a.ID,
		StorageURL:  obj.URL,
		SizeBytes:   obj.Size,
		ContentType: up.ContentType,
	})
	if err != nil {
		return model.Video{}, translate("create video", err)
	}
	metrics.RecordVideoUpload(obj.Size)
	s.logger.Info(ctx, "video attached",
		logger.Int64("attempt_id", a.ID),
		logger.String("url", obj.URL),
		logger.Int64("bytes", obj.Size),
	)
	return v, nil
}

// ListVideos returns the videos of an attempt owned by user.
func (s *Service) ListVideos(ctx context.Context, user model.User, attemptID int64) ([]model.Video, error) {
	a, err := s.ownedAttempt(ctx, user, attemptID)
	if err != nil {
		return nil, err
	}
	videos, err := s.store.VideosByAttempt(ctx, a.ID)
	if err != nil {
		return nil, translate("list videos", err)
	}
	return videos, nil
}
