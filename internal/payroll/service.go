package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Auditor records successful review transitions.
type Auditor interface {
	RecordReview(ctx context.Context, entryID uuid.UUID, from, to, actor string) error
}

// Recorder receives engine counters. observability.Metrics implements it.
type Recorder interface {
	EntryIngested(state string)
	EntryReviewed(from string)
}

// IngestFailure describes one record that could not become an entry.
type IngestFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// IngestResult summarises a batch ingestion.
type IngestResult struct {
	Entries     []PayrollEntry  `json:"entries"`
	NeedsReview int             `json:"needs_review"`
	Failures    []IngestFailure `json:"failures,omitempty"`
}

// Service exposes the engine operations over a Store.
type Service struct {
	store   Store
	builder *Builder
	cache   *ReportCache
	audit   Auditor
	metrics Recorder
	logger  *slog.Logger
	group   singleflight.Group
}

// ServiceConfig wires optional collaborators.
type ServiceConfig struct {
	Cache   *ReportCache
	Audit   Auditor
	Metrics Recorder
	Logger  *slog.Logger
}

// NewService builds the service.
func NewService(store Store, builder *Builder, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		builder: builder,
		cache:   cfg.Cache,
		audit:   cfg.Audit,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

const reportBuildTimeout = 30 * time.Second

// entryNamespace seeds the entry ids derived by IngestBatch.
var entryNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("sitepay.payroll.entry"))

// BatchEntryID is the id IngestBatch assigns to the record at index of batch.
func BatchEntryID(batch string, index int) uuid.UUID {
	return uuid.NewSHA1(entryNamespace, []byte(batch+":"+strconv.Itoa(index)))
}

// Ingest classifies and stores each record. Bad records are reported in
// Failures and never abort the batch; a store outage does, since every later
// write would fail the same way.
func (s *Service) Ingest(ctx context.Context, records []RawTimeRecord) (IngestResult, error) {
	return s.ingest(ctx, "", records)
}

// IngestBatch is Ingest with entry ids derived from batch and the record
// index. Replaying a batch after a partial failure stores each record once.
func (s *Service) IngestBatch(ctx context.Context, batch string, records []RawTimeRecord) (IngestResult, error) {
	if batch == "" {
		return IngestResult{}, errors.New("payroll: ingest batch: empty batch key")
	}
	return s.ingest(ctx, batch, records)
}

func (s *Service) ingest(ctx context.Context, batch string, records []RawTimeRecord) (IngestResult, error) {
	result := IngestResult{Entries: make([]PayrollEntry, 0, len(records))}
	defer func() {
		if len(result.Entries) == 0 {
			return
		}
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump report cache", slog.Any("error", err))
		}
	}()

	for i, rec := range records {
		entry, err := s.builder.Build(ctx, rec)
		if err == nil {
			if batch != "" {
				entry.ID = BatchEntryID(batch, i)
			}
			err = s.store.Put(ctx, entry)
		}
		if err != nil {
			if errors.Is(err, ErrPersistenceUnavailable) {
				return result, err
			}
			s.logger.Warn("skip time record",
				slog.Int("index", i),
				slog.String("employee_id", rec.EmployeeID),
				slog.Any("error", err),
			)
			result.Failures = append(result.Failures, IngestFailure{Index: i, Error: err.Error()})
			continue
		}
		if entry.ReviewState == ReviewNeedsReview {
			result.NeedsReview++
			s.logger.Info("entry flagged for review",
				slog.String("entry_id", entry.ID.String()),
				slog.String("employee_id", entry.EmployeeID),
				slog.Any("reasons", entry.ReviewReasons),
			)
		}
		if s.metrics != nil {
			s.metrics.EntryIngested(string(entry.ReviewState))
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

// GetDailyReport aggregates the entries for date. An empty day yields a
// zero report. Concurrent builds of the same report share one store read,
// which does not stop when the caller that started it goes away.
func (s *Service) GetDailyReport(ctx context.Context, date time.Time, projectFilter string) (DailyReport, error) {
	day := Day(date)
	build := func(ctx context.Context) (DailyReport, error) {
		entries, err := s.store.GetByDate(ctx, day, projectFilter)
		if err != nil {
			return DailyReport{}, err
		}
		return Aggregate(day, projectFilter, entries), nil
	}

	parts := reportCacheKey(day, projectFilter)
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache key", slog.Any("error", err))
		return build(ctx)
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportBuildTimeout)
		defer cancel()
		report, err := s.cache.FetchReport(buildCtx, key, build)
		if err != nil && !errors.Is(err, ErrPersistenceUnavailable) {
			s.logger.Warn("report cache fallback", slog.String("key", key), slog.Any("error", err))
			return build(buildCtx)
		}
		return report, err
	})
	if err != nil {
		return DailyReport{}, err
	}
	return v.(DailyReport), nil
}

// ListNeedsReview returns every active entry not yet reviewed, ordered by
// date and then by the report ordering.
func (s *Service) ListNeedsReview(ctx context.Context, projectFilter string) ([]PayrollEntry, error) {
	entries, err := s.store.ListByState(ctx, []ReviewState{ReviewPending, ReviewNeedsReview}, projectFilter)
	if err != nil {
		return nil, err
	}
	out := make([]PayrollEntry, 0, len(entries))
	for _, e := range entries {
		if e.Active() && e.ReviewState != ReviewReviewed {
			out = append(out, e)
		}
	}
	SortEntries(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GetEntry loads one entry.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (PayrollEntry, error) {
	return s.store.GetByID(ctx, id)
}

// MarkReviewed moves an entry to Reviewed. Repeating the call is a no-op.
// Concurrent callers race on the compare-and-set; the loser re-reads and
// observes Reviewed.
func (s *Service) MarkReviewed(ctx context.Context, id uuid.UUID, actor string) error {
	for attempt := 0; attempt < len(reviewTransitions); attempt++ {
		entry, err := s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		from := entry.ReviewState
		if from == ReviewReviewed {
			return nil
		}
		if !CanTransition(from, ReviewReviewed) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, ReviewReviewed)
		}
		ok, err := s.store.CASUpdateState(ctx, id, from, ReviewReviewed)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		s.afterReview(ctx, id, from, actor)
		return nil
	}
	return fmt.Errorf("payroll: mark reviewed %s: state changed concurrently", id)
}

func (s *Service) afterReview(ctx context.Context, id uuid.UUID, from ReviewState, actor string) {
	logger := s.logger.With(slog.String("entry_id", id.String()), slog.String("from", string(from)))
	logger.Info("entry reviewed", slog.String("actor", actor))
	if s.audit != nil {
		if err := s.audit.RecordReview(ctx, id, string(from), string(ReviewReviewed), actor); err != nil {
			logger.Warn("record review audit", slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		s.metrics.EntryReviewed(string(from))
	}
	if err := s.cache.Bump(ctx); err != nil {
		logger.Warn("bump report cache", slog.Any("error", err))
	}
}
