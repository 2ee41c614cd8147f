package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/okian/surgitrack/internal/adapters/auth"
	"github.com/okian/surgitrack/internal/adapters/repository"
	"github.com/okian/surgitrack/internal/domain/model"
	"github.com/okian/surgitrack/pkg/logger"
	"github.com/okian/surgitrack/pkg/metrics"
)

const minPasswordLength = 6

// RegisterInput is a new account request.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Token is an issued access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. Taken emails return ErrConflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	email := NormalizeEmail(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return model.User{}, invalid("invalid email")
	}
	if len(in.Password) < minPasswordLength {
		return model.User{}, invalid("password must be at least 6 characters")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.store.CreateUser(ctx, model.User{
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RecordAuthEvent("register", "conflict")
		}
		return model.User{}, translate("email", err)
	}
	metrics.RecordAuthEvent("register", "success")
	s.logger.Info(ctx, "user registered", logger.Int64("user_id", u.ID))
	return u, nil
}

// Login checks credentials and issues an access token. Unknown emails and
// wrong passwords both return ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.store.UserByEmail(ctx, NormalizeEmail(email))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordAuthEvent("login", "failure")
		return Token{}, ErrUnauthorized
	case err != nil:
		return Token{}, translate("login", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		metrics.RecordAuthEvent("login", "failure")
		return Token{}, ErrUnauthorized
	}

	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Token{}, err
	}
	metrics.RecordAuthEvent("login", "success")
	return Token{AccessToken: tok, TokenType: "bearer"}, nil
}

// Authenticate resolves the user behind an access token.
func (s *Service) Authenticate(ctx context.Context, token string) (model.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		metrics.RecordAuthEvent("token", "invalid")
		return model.User{}, errors.Join(ErrUnauthorized, err)
	}
	u, err := s.store.UserByID(ctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordAuthEvent("token", "unknown_user")
		return model.User{}, ErrUnauthorized
	case err != nil:
		return model.User{}, translate("authenticate", err)
	}
	return u, nil
}

// Profile returns the current state of user.
func (s *Service) Profile(ctx context.Context, user model.User) (model.User, error) {
	u, err := s.store.UserByID(ctx, user.ID)
	if err != nil {
		return model.User{}, translate("user", err)
	}
	return u, nil
}
