package service

import (
	"context"

	"github.com/okian/surgitrack/internal/adapters/repository"
	"github.com/okian/surgitrack/internal/domain/model"
)

// LeaderboardQuery selects a leaderboard page. Zero values mean unset.
type LeaderboardQuery struct {
	Limit  int
	TaskID int64
	TeamID int64
}

// Leaderboard returns the best attempt per (user, task), best first. The
// limit defaults to the configured page size and is capped by the maximum.
func (s *Service) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]model.LeaderboardEntry, error) {
	switch {
	case q.Limit < 0:
		return nil, invalid("limit must be positive")
	case q.Limit == 0:
		q.Limit = s.defaultLimit
	case q.Limit > s.maxLimit:
		q.Limit = s.maxLimit
	}

	keep, err := s.filter(ctx, q)
	if err != nil {
		return nil, err
	}
	entries, err := s.board.TopN(ctx, q.Limit, keep)
	if err != nil {
		return nil, translate("leaderboard", err)
	}
	return entries, nil
}

// filter builds the board filter for q. Unknown teams return ErrNotFound.
func (s *Service) filter(ctx context.Context, q LeaderboardQuery) (repository.Filter, error) {
	var members map[int64]struct{}
	if q.TeamID != 0 {
		ids, err := s.store.TeamMembers(ctx, q.TeamID)
		if err != nil {
			return nil, translate("team", err)
		}
		members = make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			members[id] = struct{}{}
		}
	}
	if q.TaskID == 0 && members == nil {
		return nil, nil
	}
	return func(e model.LeaderboardEntry) bool {
		if q.TaskID != 0 && e.TaskID != q.TaskID {
			return false
		}
		if members != nil {
			if _, ok := members[e.UserID]; !ok {
				return false
			}
		}
		return true
	}, nil
}

// Rank returns the global leaderboard entry of a user on a task.
func (s *Service) Rank(ctx context.Context, userID, taskID int64) (model.LeaderboardEntry, error) {
	e, err := s.board.Rank(ctx, userID, taskID)
	if err != nil {
		return model.LeaderboardEntry{}, translate("leaderboard entry", err)
	}
	return e, nil
}
