package api

import (
	"context"
	"net/http"

	"github.com/okian/surgitrack/internal/domain/model"
)

// TeamService defines the team operations used by the handlers.
type TeamService interface {
	CreateTeam(ctx context.Context, user model.User, name string) (model.Team, error)
	JoinTeam(ctx context.Context, user model.User, teamID int64) error
	ListMyTeams(ctx context.Context, user model.User) ([]model.Team, error)
}

// TeamsHandler handles team requests.
type TeamsHandler struct {
	deps TeamService
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamService) *TeamsHandler {
	return &TeamsHandler{deps: deps}
}

type teamRequest struct {
	Name string `json:"name"`
}

// HandleCreate handles POST /teams requests.
func (h *TeamsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	var req teamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	team, err := h.deps.CreateTeam(r.Context(), user, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// HandleJoin handles POST /teams/{id}/members requests.
func (h *TeamsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	teamID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.JoinTeam(r.Context(), user, teamID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMine handles GET /teams/me requests.
func (h *TeamsHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	teams, err := h.deps.ListMyTeams(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}
