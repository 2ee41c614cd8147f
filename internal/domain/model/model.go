// Package model contains domain models passed between layers.
//
// Every store query returns these explicit structs; nothing is lazily loaded.
package model

import (
	"time"

	"github.com/okian/surgitrack/internal/domain/scoring"
)

// User is a registered trainee.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Team groups users for filtered leaderboards.
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a practice drill in the catalog.
type Task struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// Standard is a per-task, per-level proficiency benchmark.
type Standard struct {
	ID                  int64          `json:"id"`
	TaskID              int64          `json:"-"`
	Level               string         `json:"level"`
	TargetTimeSeconds   int            `json:"target_time_seconds"`
	MaxMinorErrors      int            `json:"max_minor_errors"`
	MaxMajorErrors      int            `json:"max_major_errors"`
	ConsecutiveRequired int            `json:"consecutive_required"`
	ObjectiveCriteria   map[string]any `json:"objective_criteria,omitempty"`
}

// Scoring returns the scorer view of the standard.
func (s Standard) Scoring() scoring.Standard {
	return scoring.Standard{
		TargetTimeSeconds: s.TargetTimeSeconds,
		MaxMinorErrors:    s.MaxMinorErrors,
		MaxMajorErrors:    s.MaxMajorErrors,
	}
}

// ErrorType is a catalogued kind of mistake with a severity.
type ErrorType struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Severity    scoring.Severity `json:"severity"`
}

// Attempt is one timed, scored performance of a task.
type Attempt struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"-"`
	TaskID      int64       `json:"task_id"`
	StandardID  int64       `json:"standard_id"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     time.Time   `json:"ended_at"`
	TimeSeconds int         `json:"time_seconds"`
	Score       int         `json:"score"`
	Proficient  bool        `json:"proficiency"`
	Errors      []ErrorType `json:"errors"`
	CreatedAt   time.Time   `json:"-"`
}

// Video is a recording attached to an attempt.
type Video struct {
	ID          int64     `json:"id"`
	AttemptID   int64     `json:"attempt_id"`
	StorageURL  string    `json:"video_url"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskSummary is a user's best results on one task. Best values are nil
// when the user has no attempts on the task.
type TaskSummary struct {
	TaskID          int64  `json:"task_id"`
	TaskName        string `json:"task_name"`
	BestTimeSeconds *int   `json:"best_time_seconds"`
	BestScore       *int   `json:"best_score"`
	Proficient      bool   `json:"proficient"`
}

// UserSummary aggregates a user's progress over all tasks.
type UserSummary struct {
	ProficientTasks int           `json:"proficient_tasks"`
	TotalTasks      int           `json:"total_tasks"`
	TaskDetails     []TaskSummary `json:"task_details"`
}

// LeaderboardEntry is the best attempt of a user on a task.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      int64  `json:"user_id"`
	UserEmail   string `json:"user_email"`
	TaskID      int64  `json:"task_id"`
	TaskName    string `json:"task_name"`
	Score       int    `json:"score"`
	TimeSeconds int    `json:"time_seconds"`
	AttemptID   int64  `json:"attempt_id"`
}

// AttemptRecorded is published after an attempt is persisted.
type AttemptRecorded struct {
	AttemptID   int64
	UserID      int64
	UserEmail   string
	TaskID      int64
	TaskName    string
	Score       int
	TimeSeconds int
	Proficient  bool
	RecordedAt  time.Time
}

// Entry converts the event to its leaderboard row (rank unset).
func (e AttemptRecorded) Entry() LeaderboardEntry {
	return LeaderboardEntry{
		UserID:      e.UserID,
		UserEmail:   e.UserEmail,
		TaskID:      e.TaskID,
		TaskName:    e.TaskName,
		Score:       e.Score,
		TimeSeconds: e.TimeSeconds,
		AttemptID:   e.AttemptID,
	}
}
