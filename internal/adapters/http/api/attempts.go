package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/surgitrack/internal/app"
	"github.com/okian/surgitrack/internal/domain/model"
)

// multipartOverhead leaves room for part headers and boundaries on top of
// the upload limit.
const multipartOverhead = 1 << 20

// IdempotencyKeyHeader makes attempt creation retry-safe.
const IdempotencyKeyHeader = "Idempotency-Key"

// AttemptService defines the attempt operations used by the handlers.
type AttemptService interface {
	CreateAttempt(ctx context.Context, user model.User, in service.AttemptInput) (model.Attempt, error)
	ListAttempts(ctx context.Context, user model.User) ([]model.Attempt, error)
	Summary(ctx context.Context, user model.User) (model.UserSummary, error)
	AttachVideo(ctx context.Context, user model.User, attemptID int64, up service.VideoUpload) (model.Video, error)
	ListVideos(ctx context.Context, user model.User, attemptID int64) ([]model.Video, error)
}

// AttemptsHandler handles attempt submission and history requests.
type AttemptsHandler struct {
	deps           AttemptService
	maxUploadBytes int64
}

// NewAttemptsHandler creates a new attempts handler.
func NewAttemptsHandler(deps AttemptService, maxUploadBytes int64) *AttemptsHandler {
	return &AttemptsHandler{deps: deps, maxUploadBytes: maxUploadBytes}
}

// timestamp accepts RFC 3339 times and zone-less ISO 8601 times, which are
// read as UTC.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

type attemptErrorRequest struct {
	ErrorTypeID int64 `json:"error_type_id"`
}

type attemptRequest struct {
	TaskID     int64                 `json:"task_id"`
	StandardID int64                 `json:"standard_id"`
	StartedAt  *timestamp            `json:"started_at"`
	EndedAt    *timestamp            `json:"ended_at"`
	Errors     []attemptErrorRequest `json:"errors"`
}

func (a attemptRequest) validate() error {
	switch {
	case a.TaskID < 1:
		return errors.New("missing task_id")
	case a.StandardID < 1:
		return errors.New("missing standard_id")
	case a.StartedAt == nil:
		return errors.New("missing started_at")
	case a.EndedAt == nil:
		return errors.New("missing ended_at")
	}
	return nil
}

// HandleCreate handles POST /attempts requests.
func (h *AttemptsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	var req attemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	in := service.AttemptInput{
		TaskID:         req.TaskID,
		StandardID:     req.StandardID,
		StartedAt:      req.StartedAt.Time,
		EndedAt:        req.EndedAt.Time,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	}
	for _, e := range req.Errors {
		in.ErrorTypeIDs = append(in.ErrorTypeIDs, e.ErrorTypeID)
	}

	attempt, err := h.deps.CreateAttempt(r.Context(), user, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

// HandleListMine handles GET /attempts/me requests.
func (h *AttemptsHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	attempts, err := h.deps.ListAttempts(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// HandleSummary handles GET /attempts/me/summary requests.
func (h *AttemptsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	sum, err := h.deps.Summary(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type videoResponse struct {
	AttemptID int64  `json:"attempt_id"`
	VideoURL  string `json:"video_url"`
}

// HandleUploadVideo handles POST /attempts/{id}/video requests. The file is
// read from the multipart field "file" and streamed to storage.
func (h *AttemptsHandler) HandleUploadVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	attemptID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	part, err := filePart(r)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	defer part.Close()

	v, err := h.deps.AttachVideo(r.Context(), user, attemptID, service.VideoUpload{
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	})
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, videoResponse{AttemptID: v.AttemptID, VideoURL: v.StorageURL})
}

// filePart advances the multipart reader to the "file" field.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: expected multipart/form-data body", ErrBadRequest)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing file field", ErrBadRequest)
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

// HandleListVideos handles GET /attempts/{id}/videos requests.
func (h *AttemptsHandler) HandleListVideos(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrCredentials)
		return
	}
	attemptID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	videos, err := h.deps.ListVideos(r.Context(), user, attemptID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}
