package payroll

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/sitepay/internal/jobs"
	"github.com/odyssey-erp/sitepay/internal/shared"
	"github.com/odyssey-erp/sitepay/jobs"
)

// KeyReleaser frees an Idempotency-Key so the upload can be sent again.
type KeyReleaser interface {
	Delete(ctx context.Context, key, module string) error
}

// IngestJob processes queued CSV uploads. Entry ids are derived from the
// upload's idempotency key (or the task id) so a retried task stores each
// record once.
type IngestJob struct {
	service *Service
	keys    KeyReleaser
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIngestJob constructs a job handler. keys may be nil.
func NewIngestJob(service *Service, keys KeyReleaser, logger *slog.Logger, metrics *jobmetrics.Metrics) *IngestJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestJob{service: service, keys: keys, logger: logger.With(slog.String("job", jobs.TaskPayrollIngest)), metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *IngestJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	var payload jobs.PayrollIngestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track(jobs.TaskPayrollIngest)
	defer func() { err = tracker.End(err) }()

	records, err := ParseImportCSV(bytes.NewReader(payload.CSV))
	if err != nil {
		j.logger.Error("parse payroll import", slog.String("source", payload.Source), slog.Any("error", err))
		j.releaseKey(ctx, payload.IdempotencyKey)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	result, err := j.ingest(ctx, payload, records)
	if err != nil {
		j.logger.Error("ingest payroll import", slog.String("source", payload.Source), slog.Int("stored", len(result.Entries)), slog.Any("error", err))
		if finalAttempt(ctx) {
			j.releaseKey(ctx, payload.IdempotencyKey)
		}
		return err
	}
	j.metrics.AddRecords(jobs.TaskPayrollIngest, "stored", len(result.Entries))
	j.metrics.AddRecords(jobs.TaskPayrollIngest, "flagged", result.NeedsReview)
	j.metrics.AddRecords(jobs.TaskPayrollIngest, "rejected", len(result.Failures))
	j.logger.Info("payroll import ingested",
		slog.String("source", payload.Source),
		slog.Int("stored", len(result.Entries)),
		slog.Int("needs_review", result.NeedsReview),
		slog.Int("rejected", len(result.Failures)),
	)
	return nil
}

func (j *IngestJob) ingest(ctx context.Context, payload jobs.PayrollIngestPayload, records []RawTimeRecord) (IngestResult, error) {
	batch := payload.IdempotencyKey
	if batch == "" {
		batch, _ = asynq.GetTaskID(ctx)
	}
	if batch == "" {
		return j.service.Ingest(ctx, records)
	}
	return j.service.IngestBatch(ctx, "import:"+batch, records)
}

func (j *IngestJob) releaseKey(ctx context.Context, key string) {
	if key == "" || j.keys == nil {
		return
	}
	if err := j.keys.Delete(context.WithoutCancel(ctx), key, shared.IdempotencyModulePayrollIngest); err != nil {
		j.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

// finalAttempt reports whether asynq will not run the task again.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	limit, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= limit
}

// ReportWarmupJob rebuilds cached daily reports for the trailing days.
type ReportWarmupJob struct {
	service *Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(service *Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWarmupJob{
		service: service,
		logger:  logger.With(slog.String("job", jobs.TaskPayrollReportWarmup)),
		metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	if j == nil || j.service == nil {
		return errors.New("payroll warmup: handler not configured")
	}
	var payload jobs.PayrollReportWarmupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Days <= 0 {
		payload.Days = 1
	}
	tracker := j.metrics.Track(jobs.TaskPayrollReportWarmup)
	defer func() { err = tracker.End(err) }()

	today := Day(j.clock())
	for d := 0; d < payload.Days; d++ {
		date := today.AddDate(0, 0, -d)
		dayCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		report, err := j.service.GetDailyReport(dayCtx, date, "")
		cancel()
		if err != nil {
			j.logger.Error("warm daily report", slog.String("date", ReportKey(date)), slog.Any("error", err))
			return err
		}
		j.logger.Debug("warmed daily report", slog.String("date", report.ReportID), slog.Int("entries", report.EntryCount))
	}
	j.logger.Info("completed report warmup", slog.Int("days", payload.Days))
	return nil
}
