// Package repository defines the persistence and ranking interfaces of the
// service together with the in-memory leaderboard board.
package repository

import (
	"context"

	"github.com/okian/surgitrack/internal/domain/model"
)

// Users persists registered accounts.
type Users interface {
	// CreateUser inserts a user. Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	// UserByEmail returns ErrNotFound for unknown emails.
	UserByEmail(ctx context.Context, email string) (model.User, error)
	// UserByID returns ErrNotFound for unknown ids.
	UserByID(ctx context.Context, id int64) (model.User, error)
}

// Teams persists teams and their memberships.
type Teams interface {
	// CreateTeam inserts a team and adds the creator as its first member.
	// Returns ErrConflict if the name is taken.
	CreateTeam(ctx context.Context, name string, creatorID int64) (model.Team, error)
	// AddMember is idempotent. Returns ErrNotFound if the team does not exist.
	AddMember(ctx context.Context, teamID, userID int64) error
	TeamsByUser(ctx context.Context, userID int64) ([]model.Team, error)
	// TeamMembers returns ErrNotFound if the team does not exist.
	TeamMembers(ctx context.Context, teamID int64) ([]int64, error)
}

// Catalog reads and maintains tasks, standards and error types.
type Catalog interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	TaskByID(ctx context.Context, id int64) (model.Task, error)
	TaskBySlug(ctx context.Context, slug string) (model.Task, error)
	StandardByID(ctx context.Context, id int64) (model.Standard, error)
	StandardsByTask(ctx context.Context, taskID int64) ([]model.Standard, error)
	ListErrorTypes(ctx context.Context) ([]model.ErrorType, error)
	// ErrorTypesByIDs returns the known error types keyed by id. Unknown ids are absent.
	ErrorTypesByIDs(ctx context.Context, ids []int64) (map[int64]model.ErrorType, error)

	// UpsertTask inserts or updates a task keyed by slug.
	UpsertTask(ctx context.Context, t model.Task) (model.Task, error)
	// UpsertStandard inserts or updates a standard keyed by (task, level).
	UpsertStandard(ctx context.Context, s model.Standard) (model.Standard, error)
	CountErrorTypes(ctx context.Context) (int, error)
	CreateErrorType(ctx context.Context, e model.ErrorType) (model.ErrorType, error)
}

// Attempts persists scored attempts and answers aggregate queries over them.
type Attempts interface {
	// CreateAttempt inserts the attempt and one error row per entry of
	// a.Errors in a single transaction.
	CreateAttempt(ctx context.Context, a model.Attempt) (model.Attempt, error)
	AttemptByID(ctx context.Context, id int64) (model.Attempt, error)
	// AttemptsByUser returns the user's attempts newest first with their errors.
	AttemptsByUser(ctx context.Context, userID int64) ([]model.Attempt, error)
	// TaskSummaries returns one row per task with the user's bests on it.
	TaskSummaries(ctx context.Context, userID int64) ([]model.TaskSummary, error)
	// BestAttempts returns the best attempt per (user, task) pair, unranked.
	BestAttempts(ctx context.Context) ([]model.LeaderboardEntry, error)
}

// Videos persists attempt video metadata.
type Videos interface {
	CreateVideo(ctx context.Context, v model.Video) (model.Video, error)
	VideosByAttempt(ctx context.Context, attemptID int64) ([]model.Video, error)
}

// Store is the full relational store.
type Store interface {
	Users
	Teams
	Catalog
	Attempts
	Videos
	Close() error
}

// Filter selects leaderboard entries. A nil Filter keeps everything.
type Filter func(model.LeaderboardEntry) bool

// Ranking provides read/write access to the leaderboard state.
type Ranking interface {
	// UpdateBest records e if it beats the current best for its (user, task)
	// pair. Returns true if the board changed.
	UpdateBest(ctx context.Context, e model.LeaderboardEntry) (bool, error)

	// Rank returns the entry of a (user, task) pair with its global rank.
	// Returns ErrNotFound if the pair has no attempts.
	Rank(ctx context.Context, userID, taskID int64) (model.LeaderboardEntry, error)

	// TopN returns up to n entries kept by keep, best first. Ranks are
	// computed within the filtered sequence.
	TopN(ctx context.Context, n int, keep Filter) ([]model.LeaderboardEntry, error)

	// Count returns the number of ranked (user, task) pairs.
	Count(ctx context.Context) int
}
