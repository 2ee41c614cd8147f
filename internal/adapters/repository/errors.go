package repository

import "errors"

// Sentinel kinds for store and leaderboard errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)
