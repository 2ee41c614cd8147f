package service

import (
	"context"

	"github.com/okian/surgitrack/internal/domain/catalog"
	"github.com/okian/surgitrack/internal/domain/model"
)

// ListTasks returns every task.
func (s *Service) ListTasks(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, translate("list tasks", err)
	}
	return tasks, nil
}

// TaskBySlug returns one task.
func (s *Service) TaskBySlug(ctx context.Context, slug string) (model.Task, error) {
	t, err := s.store.TaskBySlug(ctx, slug)
	if err != nil {
		return model.Task{}, translate("task", err)
	}
	return t, nil
}

// ListStandards returns the standards of a task. Missing tasks return
// ErrNotFound.
func (s *Service) ListStandards(ctx context.Context, taskID int64) ([]model.Standard, error) {
	if _, err := s.store.TaskByID(ctx, taskID); err != nil {
		return nil, translate("task", err)
	}
	stds, err := s.store.StandardsByTask(ctx, taskID)
	if err != nil {
		return nil, translate("list standards", err)
	}
	return stds, nil
}

// ListErrorTypes returns every error type.
func (s *Service) ListErrorTypes(ctx context.Context) ([]model.ErrorType, error) {
	types, err := s.store.ListErrorTypes(ctx)
	if err != nil {
		return nil, translate("list error types", err)
	}
	return types, nil
}

// Seed writes cat into the store.
func (s *Service) Seed(ctx context.Context, cat *catalog.Catalog) (catalog.Result, error) {
	return cat.Seed(ctx, s.store)
}
