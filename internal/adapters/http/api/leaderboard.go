package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/surgitrack/internal/app"
	"github.com/okian/surgitrack/internal/domain/model"
)

// LeaderboardService defines the leaderboard reads used by the handlers.
type LeaderboardService interface {
	Leaderboard(ctx context.Context, q service.LeaderboardQuery) ([]model.LeaderboardEntry, error)
	Rank(ctx context.Context, userID, taskID int64) (model.LeaderboardEntry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardService
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard/global?limit&task_id&team_id
// requests. A missing limit takes the configured default.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q, err := leaderboardQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func leaderboardQuery(r *http.Request) (service.LeaderboardQuery, error) {
	var (
		q   service.LeaderboardQuery
		err error
	)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
		}
		q.Limit = n
	}
	if q.TaskID, err = queryID(r, "task_id"); err != nil {
		return q, err
	}
	if q.TeamID, err = queryID(r, "team_id"); err != nil {
		return q, err
	}
	return q, nil
}
