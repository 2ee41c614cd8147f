package service

import (
	"errors"
	"fmt"

	"github.com/okian/surgitrack/internal/adapters/repository"
)

// Sentinel errors returned by the use cases. The HTTP layer maps them to
// status codes with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid request")
	ErrConflict     = errors.New("already exists")
	ErrDuplicate    = errors.New("duplicate submission")
	ErrUnauthorized = errors.New("unauthorized")
)

// invalid reports a rejected input with a client-facing message.
func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

// notFound reports a missing resource, e.g. "attempt: not found".
func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// translate lifts repository sentinels into service sentinels. Other errors
// are wrapped with what.
func translate(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
