package payrollhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/sitepay/internal/payroll"
	"github.com/odyssey-erp/sitepay/internal/payroll/export"
	"github.com/odyssey-erp/sitepay/internal/platform/httpx"
	"github.com/odyssey-erp/sitepay/internal/shared"
	"github.com/odyssey-erp/sitepay/jobs"
)

const maxUploadBytes = 10 << 20

// Service is the engine contract the handlers depend on.
type Service interface {
	GetDailyReport(ctx context.Context, date time.Time, projectFilter string) (payroll.DailyReport, error)
	ListNeedsReview(ctx context.Context, projectFilter string) ([]payroll.PayrollEntry, error)
	MarkReviewed(ctx context.Context, id uuid.UUID, actor string) error
	GetEntry(ctx context.Context, id uuid.UUID) (payroll.PayrollEntry, error)
	Ingest(ctx context.Context, records []payroll.RawTimeRecord) (payroll.IngestResult, error)
}

// Enqueuer submits asynchronous CSV imports.
type Enqueuer interface {
	EnqueuePayrollIngest(ctx context.Context, payload jobs.PayrollIngestPayload) (*asynq.TaskInfo, error)
}

// Idempotency guards repeated uploads carrying the same Idempotency-Key.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// ReviewHistory lists recorded review transitions for an entry.
type ReviewHistory interface {
	History(ctx context.Context, entryID uuid.UUID) ([]shared.ReviewLog, error)
}

// ExportRecorder counts served exports.
type ExportRecorder interface {
	ReportExported()
}

// Config wires optional collaborators. Nil fields disable the matching feature.
type Config struct {
	Logger          *slog.Logger
	Jobs            Enqueuer
	Idempotency     Idempotency
	History         ReviewHistory
	Metrics         ExportRecorder
	ExportRateLimit int
}

// Handler serves the payroll JSON API.
type Handler struct {
	logger      *slog.Logger
	service     Service
	validator   *validator.Validate
	jobs        Enqueuer
	idempotency Idempotency
	history     ReviewHistory
	metrics     ExportRecorder
	exportLimit int
}

// NewHandler constructs the handler.
func NewHandler(service Service, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.ExportRateLimit
	if limit <= 0 {
		limit = 10
	}
	return &Handler{
		logger:      logger,
		service:     service,
		validator:   validator.New(),
		jobs:        cfg.Jobs,
		idempotency: cfg.Idempotency,
		history:     cfg.History,
		metrics:     cfg.Metrics,
		exportLimit: limit,
	}
}

type recordRequest struct {
	EmployeeID             string     `json:"employee_id" validate:"required,max=64"`
	EmployeeName           string     `json:"employee_name" validate:"max=200"`
	EmployeeNumber         string     `json:"employee_number" validate:"max=64"`
	ProjectID              string     `json:"project_id" validate:"required,max=64"`
	ProjectName            string     `json:"project_name" validate:"max=200"`
	Date                   string     `json:"date" validate:"required,datetime=2006-01-02"`
	WorkedHours            *float64   `json:"worked_hours,omitempty"`
	Arrival                *time.Time `json:"arrival,omitempty"`
	Departure              *time.Time `json:"departure,omitempty"`
	ActivityNotes          string     `json:"activity_notes" validate:"max=4000"`
	EmployeeSpecificIssues string     `json:"employee_specific_issues" validate:"max=4000"`
	Supersedes             *uuid.UUID `json:"supersedes,omitempty"`
}

func (req recordRequest) record() (payroll.RawTimeRecord, error) {
	date, err := payroll.ParseDate(req.Date)
	if err != nil {
		return payroll.RawTimeRecord{}, err
	}
	return payroll.RawTimeRecord{
		EmployeeID:             req.EmployeeID,
		EmployeeName:           req.EmployeeName,
		EmployeeNumber:         req.EmployeeNumber,
		ProjectID:              req.ProjectID,
		ProjectName:            req.ProjectName,
		Date:                   date,
		WorkedHours:            req.WorkedHours,
		Arrival:                req.Arrival,
		Departure:              req.Departure,
		ActivityNotes:          req.ActivityNotes,
		EmployeeSpecificIssues: req.EmployeeSpecificIssues,
		Supersedes:             req.Supersedes,
	}, nil
}

type ingestRequest struct {
	Records []recordRequest `json:"records" validate:"required,min=1,max=5000,dive"`
}

type reviewRequest struct {
	Actor string `json:"actor" validate:"max=128"`
}

type reviewQueueResponse struct {
	Entries    []payroll.PayrollEntry `json:"entries"`
	Pagination shared.Pagination      `json:"pagination"`
}

type enqueueResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	report, err := h.service.GetDailyReport(r.Context(), date, projectParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) exportReport(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	data, err := export.Daily(r.Context(), h.service, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ReportExported()
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(date)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) listReview(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListNeedsReview(r.Context(), projectParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	perPage, _ := strconv.Atoi(query.Get("per_page"))
	paging := shared.NewPagination(page, perPage, len(entries))
	start, end := paging.Bounds()
	httpx.JSON(w, http.StatusOK, reviewQueueResponse{Entries: entries[start:end], Pagination: paging})
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) entryHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "review history is not configured")
		return
	}
	if _, err := h.service.GetEntry(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	logs, err := h.history.History(r.Context(), id)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", payroll.ErrPersistenceUnavailable, err))
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) markReviewed(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if req.Actor == "" {
		req.Actor = r.Header.Get("X-Actor")
	}
	req.Actor = strings.TrimSpace(req.Actor)
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if req.Actor == "" {
		httpx.RespondError(w, fmt.Errorf("%w: actor required", httpx.ErrValidation))
		return
	}
	if err := h.service.MarkReviewed(r.Context(), id, req.Actor); err != nil {
		h.respondError(w, r, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) ingestRecords(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	records := make([]payroll.RawTimeRecord, 0, len(req.Records))
	for i, item := range req.Records {
		rec, err := item.record()
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: records[%d]: %v", httpx.ErrValidation, i, err))
			return
		}
		records = append(records, rec)
	}
	h.ingest(w, r, records)
}

func (h *Handler) importRecords(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.enqueueImport(w, r, body)
		return
	}
	records, err := payroll.ParseImportCSV(bytes.NewReader(body))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.ingest(w, r, records)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, records []payroll.RawTimeRecord) {
	key, ok := h.claimKey(w, r)
	if !ok {
		return
	}
	result, err := h.service.Ingest(r.Context(), records)
	if err != nil {
		h.releaseKey(r.Context(), key)
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) enqueueImport(w http.ResponseWriter, r *http.Request, body []byte) {
	if h.jobs == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "async import is not configured")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		httpx.RespondError(w, fmt.Errorf("%w: empty upload", httpx.ErrValidation))
		return
	}
	key, ok := h.claimKey(w, r)
	if !ok {
		return
	}
	info, err := h.jobs.EnqueuePayrollIngest(r.Context(), jobs.PayrollIngestPayload{
		IdempotencyKey: key,
		Source:         r.Header.Get("X-Upload-Source"),
		CSV:            body,
	})
	if err != nil {
		h.releaseKey(r.Context(), key)
		h.logger.Error("enqueue payroll import", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
		return
	}
	httpx.JSON(w, http.StatusAccepted, enqueueResponse{TaskID: info.ID, Queue: info.Queue})
}

// claimKey records the request's Idempotency-Key. It reports false after
// writing the response when the key was already used.
func (h *Handler) claimKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" || h.idempotency == nil {
		return "", true
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), key, shared.IdempotencyModulePayrollIngest); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.RespondError(w, fmt.Errorf("%w: idempotency key %q already used", httpx.ErrConflict, key))
			return "", false
		}
		h.respondError(w, r, fmt.Errorf("%w: %v", payroll.ErrPersistenceUnavailable, err))
		return "", false
	}
	return key, true
}

func (h *Handler) releaseKey(ctx context.Context, key string) {
	if key == "" || h.idempotency == nil {
		return
	}
	if err := h.idempotency.Delete(ctx, key, shared.IdempotencyModulePayrollIngest); err != nil {
		h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := payroll.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation))
		return time.Time{}, false
	}
	return date, true
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid entry id", httpx.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}

func projectParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("project_id"))
}

// respondError maps engine errors onto problem responses.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, payroll.ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
	case errors.Is(err, payroll.ErrInvalidTransition), errors.Is(err, payroll.ErrAlreadySuperseded):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrConflict, err))
	case errors.Is(err, payroll.ErrInvalidRecord):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, payroll.ErrPersistenceUnavailable):
		h.logger.Warn("payroll store unavailable",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
	default:
		h.logger.Error("payroll request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		httpx.RespondError(w, err)
	}
}
