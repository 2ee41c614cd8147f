package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/okian/surgitrack/internal/domain/model"
	"github.com/okian/surgitrack/internal/domain/scoring"
)

const (
	taskColumns      = `id, name, slug, category, description`
	standardColumns  = `id, task_id, level, target_time_seconds, max_minor_errors, max_major_errors, consecutive_required, objective_criteria`
	errorTypeColumns = `id, name, description, severity`
)

// ListTasks implements repository.Catalog.
func (s *Store) ListTasks(ctx context.Context) (_ []model.Task, err error) {
	defer track("list_tasks")(&err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TaskByID implements repository.Catalog.
func (s *Store) TaskByID(ctx context.Context, id int64) (_ model.Task, err error) {
	defer track("task_by_id")(&err)
	return scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
}

// TaskBySlug implements repository.Catalog.
func (s *Store) TaskBySlug(ctx context.Context, slug string) (_ model.Task, err error) {
	defer track("task_by_slug")(&err)
	return scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE slug = ?`, slug))
}

// UpsertTask implements repository.Catalog.
func (s *Store) UpsertTask(ctx context.Context, t model.Task) (_ model.Task, err error) {
	defer track("upsert_task")(&err)

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (name, slug, category, description) VALUES (?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			description = excluded.description
		RETURNING id`,
		t.Name, t.Slug, t.Category, t.Description).Scan(&t.ID)
	if err != nil {
		return model.Task{}, mapErr(err)
	}
	return t, nil
}

func scanTask(row rowScanner) (model.Task, error) {
	var t model.Task
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Category, &t.Description); err != nil {
		return model.Task{}, mapErr(err)
	}
	return t, nil
}

// StandardByID implements repository.Catalog.
func (s *Store) StandardByID(ctx context.Context, id int64) (_ model.Standard, err error) {
	defer track("standard_by_id")(&err)
	return scanStandard(s.db.QueryRowContext(ctx, `SELECT `+standardColumns+` FROM task_standards WHERE id = ?`, id))
}

// StandardsByTask implements repository.Catalog.
func (s *Store) StandardsByTask(ctx context.Context, taskID int64) (_ []model.Standard, err error) {
	defer track("standards_by_task")(&err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+standardColumns+` FROM task_standards WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standards := []model.Standard{}
	for rows.Next() {
		st, err := scanStandard(rows)
		if err != nil {
			return nil, err
		}
		standards = append(standards, st)
	}
	return standards, rows.Err()
}

// UpsertStandard implements repository.Catalog.
func (s *Store) UpsertStandard(ctx context.Context, st model.Standard) (_ model.Standard, err error) {
	defer track("upsert_standard")(&err)

	if st.ConsecutiveRequired < 1 {
		st.ConsecutiveRequired = 1
	}
	var criteria sql.NullString
	if st.ObjectiveCriteria != nil {
		raw, err := json.Marshal(st.ObjectiveCriteria)
		if err != nil {
			return model.Standard{}, fmt.Errorf("encode objective criteria: %w", err)
		}
		criteria = sql.NullString{String: string(raw), Valid: true}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO task_standards
			(task_id, level, target_time_seconds, max_minor_errors, max_major_errors, consecutive_required, objective_criteria)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id, level) DO UPDATE SET
			target_time_seconds = excluded.target_time_seconds,
			max_minor_errors = excluded.max_minor_errors,
			max_major_errors = excluded.max_major_errors,
			consecutive_required = excluded.consecutive_required,
			objective_criteria = excluded.objective_criteria
		RETURNING id`,
		st.TaskID, st.Level, st.TargetTimeSeconds, st.MaxMinorErrors, st.MaxMajorErrors,
		st.ConsecutiveRequired, criteria).Scan(&st.ID)
	if err != nil {
		return model.Standard{}, mapErr(err)
	}
	return st, nil
}

func scanStandard(row rowScanner) (model.Standard, error) {
	var (
		st       model.Standard
		criteria sql.NullString
	)
	err := row.Scan(&st.ID, &st.TaskID, &st.Level, &st.TargetTimeSeconds,
		&st.MaxMinorErrors, &st.MaxMajorErrors, &st.ConsecutiveRequired, &criteria)
	if err != nil {
		return model.Standard{}, mapErr(err)
	}
	if criteria.Valid && criteria.String != "" {
		if err := json.Unmarshal([]byte(criteria.String), &st.ObjectiveCriteria); err != nil {
			return model.Standard{}, fmt.Errorf("decode objective criteria: %w", err)
		}
	}
	return st, nil
}

// ListErrorTypes implements repository.Catalog.
func (s *Store) ListErrorTypes(ctx context.Context) (_ []model.ErrorType, err error) {
	defer track("list_error_types")(&err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+errorTypeColumns+` FROM error_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []model.ErrorType{}
	for rows.Next() {
		et, err := scanErrorType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, et)
	}
	return types, rows.Err()
}

// ErrorTypesByIDs implements repository.Catalog.
func (s *Store) ErrorTypesByIDs(ctx context.Context, ids []int64) (_ map[int64]model.ErrorType, err error) {
	defer track("error_types_by_ids")(&err)

	out := make(map[int64]model.ErrorType, len(ids))
	for len(ids) > 0 {
		n := min(len(ids), maxInArgs)
		if err := s.errorTypesIn(ctx, ids[:n], out); err != nil {
			return nil, err
		}
		ids = ids[n:]
	}
	return out, nil
}

// maxInArgs keeps IN lists well under SQLite's bound variable limit.
const maxInArgs = 500

func (s *Store) errorTypesIn(ctx context.Context, ids []int64, out map[int64]model.ErrorType) error {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+errorTypeColumns+` FROM error_types WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		et, err := scanErrorType(rows)
		if err != nil {
			return err
		}
		out[et.ID] = et
	}
	return rows.Err()
}

// CountErrorTypes implements repository.Catalog.
func (s *Store) CountErrorTypes(ctx context.Context) (n int, err error) {
	defer track("count_error_types")(&err)
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM error_types`).Scan(&n)
	return n, err
}

// CreateErrorType implements repository.Catalog.
func (s *Store) CreateErrorType(ctx context.Context, e model.ErrorType) (_ model.ErrorType, err error) {
	defer track("create_error_type")(&err)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO error_types (name, description, severity) VALUES (?, ?, ?)`,
		e.Name, e.Description, string(e.Severity))
	if err != nil {
		return model.ErrorType{}, mapErr(err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return model.ErrorType{}, err
	}
	return e, nil
}

func scanErrorType(row rowScanner) (model.ErrorType, error) {
	var (
		e   model.ErrorType
		sev string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &sev); err != nil {
		return model.ErrorType{}, mapErr(err)
	}
	e.Severity = scoring.Severity(sev)
	return e, nil
}
