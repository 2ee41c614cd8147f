package api

import (
	"net/http"
)

// RankHandler handles rank requests.
type RankHandler struct {
	deps LeaderboardService
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps LeaderboardService) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /leaderboard/rank/{user_id}/{task_id} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	taskID, err := pathID(r, "task_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), userID, taskID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
