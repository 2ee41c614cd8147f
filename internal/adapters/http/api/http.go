// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/surgitrack/internal/app"
	"github.com/okian/surgitrack/pkg/logger"
	"github.com/okian/surgitrack/pkg/metrics"
)

const defaultMaxUploadBytes = 200 << 20

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 4 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	AccountService
	CatalogService
	AttemptService
	TeamService
	LeaderboardService
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	authHandler        *AuthHandler
	catalogHandler     *CatalogHandler
	attemptsHandler    *AttemptsHandler
	teamsHandler       *TeamsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	auth               *Authenticator
}

// Option configures the Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxUploadBytes int64
}

// WithMaxUploadBytes bounds the request body of video uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		authHandler:        NewAuthHandler(deps),
		catalogHandler:     NewCatalogHandler(deps),
		attemptsHandler:    NewAttemptsHandler(deps, cfg.maxUploadBytes),
		teamsHandler:       NewTeamsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		rankHandler:        NewRankHandler(deps),
		auth:               NewAuthenticator(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	authed := s.auth.Require

	mux.HandleFunc("GET /{$}", MetricsMiddleware(s.healthHandler.HandleRoot, "root"))
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /auth/register", MetricsMiddleware(s.authHandler.HandleRegister, "auth_register"))
	mux.HandleFunc("POST /auth/login", MetricsMiddleware(s.authHandler.HandleLogin, "auth_login"))
	mux.HandleFunc("GET /auth/me", MetricsMiddleware(authed(s.authHandler.HandleMe), "auth_me"))

	mux.HandleFunc("GET /tasks", MetricsMiddleware(s.catalogHandler.HandleListTasks, "tasks"))
	mux.HandleFunc("GET /tasks/{slug}", MetricsMiddleware(s.catalogHandler.HandleGetTask, "task"))
	mux.HandleFunc("GET /tasks/{task_id}/standards", MetricsMiddleware(s.catalogHandler.HandleListStandards, "standards"))
	mux.HandleFunc("GET /error-types", MetricsMiddleware(s.catalogHandler.HandleListErrorTypes, "error_types"))

	create := MetricsMiddleware(authed(s.attemptsHandler.HandleCreate), "attempts_create")
	mux.HandleFunc("POST /attempts", create)
	mux.HandleFunc("POST /attempts/{$}", create)
	mux.HandleFunc("GET /attempts/me", MetricsMiddleware(authed(s.attemptsHandler.HandleListMine), "attempts_me"))
	mux.HandleFunc("GET /attempts/me/summary", MetricsMiddleware(authed(s.attemptsHandler.HandleSummary), "attempts_summary"))
	mux.HandleFunc("POST /attempts/{id}/video", MetricsMiddleware(authed(s.attemptsHandler.HandleUploadVideo), "attempts_video"))
	mux.HandleFunc("GET /attempts/{id}/videos", MetricsMiddleware(authed(s.attemptsHandler.HandleListVideos), "attempts_videos"))

	mux.HandleFunc("GET /leaderboard/global", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /leaderboard/rank/{user_id}/{task_id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))

	mux.HandleFunc("POST /teams", MetricsMiddleware(authed(s.teamsHandler.HandleCreate), "teams_create"))
	mux.HandleFunc("POST /teams/{id}/members", MetricsMiddleware(authed(s.teamsHandler.HandleJoin), "teams_join"))
	mux.HandleFunc("GET /teams/me", MetricsMiddleware(authed(s.teamsHandler.HandleListMine), "teams_me"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service sentinels into status codes. Anything
// unrecognised is logged and reported as a 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
	case errors.Is(err, service.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusBadRequest, "conflict", err)
	case errors.Is(err, service.ErrInvalid):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, "cancelled", err)
	default:
		metrics.RecordErrorByComponent("http", "internal")
		logger.FromContext(r.Context()).Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// decodeJSON reads a single JSON object of at most maxJSONBytes from the
// request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err)
	}
	return nil
}

// writeBodyError answers request body failures: 413 when the body exceeds
// its limit, 400 when it is malformed.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", errors.New("request body too large"))
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeServiceError(w, r, err)
	}
}

// Chain wraps the routed mux with the request-wide middleware.
func Chain(next http.Handler) http.Handler {
	return CORS(RequestLogger(next))
}
