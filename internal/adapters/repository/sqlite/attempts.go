package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/surgitrack/internal/domain/model"
)

const attemptColumns = `id, user_id, task_id, standard_id, started_at, ended_at, time_seconds, score, proficiency, created_at`

// CreateAttempt implements repository.Attempts.
func (s *Store) CreateAttempt(ctx context.Context, a model.Attempt) (_ model.Attempt, err error) {
	defer track("create_attempt")(&err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	a.CreatedAt = s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO attempts (user_id, task_id, standard_id, started_at, ended_at, time_seconds, score, proficiency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.TaskID, a.StandardID, formatTime(a.StartedAt), formatTime(a.EndedAt),
		a.TimeSeconds, a.Score, a.Proficient, formatTime(a.CreatedAt))
	if err != nil {
		return model.Attempt{}, mapErr(err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return model.Attempt{}, err
	}

	for _, e := range a.Errors {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO attempt_errors (attempt_id, error_type_id) VALUES (?, ?)`, a.ID, e.ID); err != nil {
			return model.Attempt{}, mapErr(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return model.Attempt{}, fmt.Errorf("commit: %w", err)
	}
	if a.Errors == nil {
		a.Errors = []model.ErrorType{}
	}
	return a, nil
}

// AttemptByID implements repository.Attempts.
func (s *Store) AttemptByID(ctx context.Context, id int64) (_ model.Attempt, err error) {
	defer track("attempt_by_id")(&err)

	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id))
	if err != nil {
		return model.Attempt{}, err
	}
	byAttempt, err := s.attemptErrors(ctx, `WHERE ae.attempt_id = ?`, id)
	if err != nil {
		return model.Attempt{}, err
	}
	a.Errors = errorsOrEmpty(byAttempt[a.ID])
	return a, nil
}

// AttemptsByUser implements repository.Attempts.
func (s *Store) AttemptsByUser(ctx context.Context, userID int64) (_ []model.Attempt, err error) {
	defer track("attempts_by_user")(&err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	attempts := []model.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		attempts = append(attempts, a)
	}
	// Release the connection before the second query.
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	byAttempt, err := s.attemptErrors(ctx,
		`JOIN attempts a ON a.id = ae.attempt_id WHERE a.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	for i := range attempts {
		attempts[i].Errors = errorsOrEmpty(byAttempt[attempts[i].ID])
	}
	return attempts, nil
}

// attemptErrors loads logged error types grouped by attempt id, in
// logging order. where filters the attempt_errors alias "ae".
func (s *Store) attemptErrors(ctx context.Context, where string, args ...any) (map[int64][]model.ErrorType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ae.attempt_id, et.id, et.name, et.description, et.severity
		FROM attempt_errors ae JOIN error_types et ON et.id = ae.error_type_id
		`+where+`
		ORDER BY ae.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.ErrorType)
	for rows.Next() {
		var attemptID int64
		var e model.ErrorType
		if err := rows.Scan(&attemptID, &e.ID, &e.Name, &e.Description, &e.Severity); err != nil {
			return nil, err
		}
		out[attemptID] = append(out[attemptID], e)
	}
	return out, rows.Err()
}

func errorsOrEmpty(errs []model.ErrorType) []model.ErrorType {
	if errs == nil {
		return []model.ErrorType{}
	}
	return errs
}

func scanAttempt(row rowScanner) (model.Attempt, error) {
	var (
		a                         model.Attempt
		started, ended, createdAt string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.TaskID, &a.StandardID, &started, &ended,
		&a.TimeSeconds, &a.Score, &a.Proficient, &createdAt)
	if err != nil {
		return model.Attempt{}, mapErr(err)
	}
	if a.StartedAt, err = parseTime(started); err != nil {
		return model.Attempt{}, err
	}
	if a.EndedAt, err = parseTime(ended); err != nil {
		return model.Attempt{}, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Attempt{}, err
	}
	return a, nil
}

// TaskSummaries implements repository.Attempts.
func (s *Store) TaskSummaries(ctx context.Context, userID int64) (_ []model.TaskSummary, err error) {
	defer track("task_summaries")(&err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, MIN(a.time_seconds), MAX(a.score), COALESCE(MAX(a.proficiency), 0)
		FROM tasks t
		LEFT JOIN attempts a ON a.task_id = t.id AND a.user_id = ?
		GROUP BY t.id, t.name
		ORDER BY t.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TaskSummary{}
	for rows.Next() {
		var (
			ts                  model.TaskSummary
			bestTime, bestScore sql.NullInt64
			proficient          int64
		)
		if err := rows.Scan(&ts.TaskID, &ts.TaskName, &bestTime, &bestScore, &proficient); err != nil {
			return nil, err
		}
		if bestTime.Valid {
			v := int(bestTime.Int64)
			ts.BestTimeSeconds = &v
		}
		if bestScore.Valid {
			v := int(bestScore.Int64)
			ts.BestScore = &v
		}
		ts.Proficient = proficient != 0
		out = append(out, ts)
	}
	return out, rows.Err()
}

// BestAttempts implements repository.Attempts.
func (s *Store) BestAttempts(ctx context.Context) (_ []model.LeaderboardEntry, err error) {
	defer track("best_attempts")(&err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, u.email, b.task_id, t.name, b.score, b.time_seconds
		FROM (
			SELECT id, user_id, task_id, score, time_seconds,
				ROW_NUMBER() OVER (
					PARTITION BY user_id, task_id
					ORDER BY score DESC, time_seconds ASC, id ASC
				) AS rn
			FROM attempts
		) b
		JOIN users u ON u.id = b.user_id
		JOIN tasks t ON t.id = b.task_id
		WHERE b.rn = 1
		ORDER BY b.score DESC, b.time_seconds ASC, b.user_id ASC, b.task_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.AttemptID, &e.UserID, &e.UserEmail, &e.TaskID, &e.TaskName, &e.Score, &e.TimeSeconds); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
