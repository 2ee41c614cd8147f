package api

import (
	"context"
	"net/http"

	"github.com/okian/surgitrack/internal/domain/model"
)

// CatalogService defines the catalog reads used by the handlers.
type CatalogService interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	TaskBySlug(ctx context.Context, slug string) (model.Task, error)
	ListStandards(ctx context.Context, taskID int64) ([]model.Standard, error)
	ListErrorTypes(ctx context.Context) ([]model.ErrorType, error)
}

// CatalogHandler serves tasks, standards and error types.
type CatalogHandler struct {
	deps CatalogService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps CatalogService) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

// HandleListTasks handles GET /tasks requests.
func (h *CatalogHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.deps.ListTasks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// HandleGetTask handles GET /tasks/{slug} requests.
func (h *CatalogHandler) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.deps.TaskBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleListStandards handles GET /tasks/{task_id}/standards requests.
func (h *CatalogHandler) HandleListStandards(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "task_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	stds, err := h.deps.ListStandards(r.Context(), taskID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stds)
}

// HandleListErrorTypes handles GET /error-types requests.
func (h *CatalogHandler) HandleListErrorTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.deps.ListErrorTypes(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}
