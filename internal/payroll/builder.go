package payroll

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Builder composes classification and review evaluation into entries.
type Builder struct {
	rates  RateSource
	limits Limits
	newID  func() uuid.UUID
	now    func() time.Time
}

// NewBuilder constructs a Builder. Limits are passed explicitly so a Builder
// is a pure function of its inputs apart from id and clock.
func NewBuilder(rates RateSource, limits Limits) *Builder {
	return &Builder{
		rates:  rates,
		limits: limits,
		newID:  uuid.New,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides id generation and the clock, mainly for tests.
func (b *Builder) WithClock(newID func() uuid.UUID, now func() time.Time) *Builder {
	if newID != nil {
		b.newID = newID
	}
	if now != nil {
		b.now = now
	}
	return b
}

// Build produces an entry for rec. Duration and rate anomalies never fail the
// call: they flag the entry instead. Only invalid identity fields and store
// outages are returned as errors.
func (b *Builder) Build(ctx context.Context, rec RawTimeRecord) (PayrollEntry, error) {
	if err := rec.Validate(); err != nil {
		return PayrollEntry{}, err
	}
	rec = normaliseRecord(rec)

	profile, lookupErr := b.lookup(ctx, rec)
	if lookupErr != nil && !errors.Is(lookupErr, ErrMissingRateProfile) {
		return PayrollEntry{}, lookupErr
	}

	classification, classifyErr := Classify(rec, profile, b.limits.Defaults)
	if lookupErr != nil {
		classification.Cost = decimal.Zero
		classifyErr = errors.Join(classifyErr, lookupErr)
	}
	verdict := Evaluate(rec, classification, classifyErr, b.limits)

	return PayrollEntry{
		ID:                     b.newID(),
		ReportID:               ReportKey(rec.Date),
		EmployeeID:             rec.EmployeeID,
		EmployeeName:           rec.EmployeeName,
		EmployeeNumber:         rec.EmployeeNumber,
		ProjectID:              rec.ProjectID,
		ProjectName:            rec.ProjectName,
		Date:                   Day(rec.Date),
		RegularHours:           classification.RegularHours,
		OvertimeHours:          classification.OvertimeHours,
		DoubleTimeHours:        classification.DoubleTimeHours,
		TotalHours:             classification.TierSum(),
		RegularRate:            classification.RegularRate,
		OvertimeRate:           classification.OvertimeRate,
		DoubleTimeRate:         classification.DoubleTimeRate,
		TotalCost:              classification.Cost,
		Arrival:                utcPtr(rec.Arrival),
		Departure:              utcPtr(rec.Departure),
		ActivityNotes:          rec.ActivityNotes,
		EmployeeSpecificIssues: rec.EmployeeSpecificIssues,
		ReviewState:            verdict.State,
		ReviewReasons:          verdict.Reasons,
		Supersedes:             rec.Supersedes,
		CreatedAt:              b.now(),
	}, nil
}

func (b *Builder) lookup(ctx context.Context, rec RawTimeRecord) (RateProfile, error) {
	if b.rates == nil {
		return RateProfile{}, ErrMissingRateProfile
	}
	profile, err := b.rates.LookupRate(ctx, rec.EmployeeID, rec.ProjectID)
	if err != nil {
		return RateProfile{}, err
	}
	return profile, nil
}

// normaliseRecord canonicalises display text so sorting and CSV output are stable.
func normaliseRecord(rec RawTimeRecord) RawTimeRecord {
	rec.EmployeeID = strings.TrimSpace(rec.EmployeeID)
	rec.ProjectID = strings.TrimSpace(rec.ProjectID)
	rec.EmployeeName = normaliseName(rec.EmployeeName)
	rec.EmployeeNumber = strings.TrimSpace(rec.EmployeeNumber)
	rec.ProjectName = normaliseName(rec.ProjectName)
	rec.ActivityNotes = normaliseText(rec.ActivityNotes)
	rec.EmployeeSpecificIssues = normaliseText(rec.EmployeeSpecificIssues)
	return rec
}

func normaliseName(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func normaliseText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return norm.NFC.String(strings.TrimSpace(s))
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
