package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"

	service "github.com/okian/surgitrack/internal/app"
	"github.com/okian/surgitrack/internal/domain/model"
)

// AccountService defines the account operations used by the handlers.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (model.User, error)
	Login(ctx context.Context, email, password string) (service.Token, error)
	Authenticate(ctx context.Context, token string) (model.User, error)
	Profile(ctx context.Context, user model.User) (model.User, error)
}

// AuthHandler handles registration, login and profile requests.
type AuthHandler struct {
	deps AccountService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps AccountService) *AuthHandler {
	return &AuthHandler{deps: deps}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister handles POST /auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	user, err := h.deps.Register(r.Context(), service.RegisterInput(req))
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			writeError(w, http.StatusBadRequest, "conflict", errors.New("email already registered"))
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin handles POST /auth/login requests. Credentials come from an
// OAuth2 password form (username, password) or a JSON body.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := readLogin(w, r)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	tok, err := h.deps.Login(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			writeError(w, http.StatusBadRequest, "invalid_credentials", ErrLogin)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func readLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := decodeJSON(w, r, &req); err != nil {
			return req, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	return req, nil
}

// HandleMe handles GET /auth/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	profile, err := h.deps.Profile(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
