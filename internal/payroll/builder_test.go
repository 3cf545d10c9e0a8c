package payroll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var builderNow = time.Date(2025, 1, 11, 9, 30, 0, 0, time.UTC)

func newTestBuilder(rates RateSource) *Builder {
	return NewBuilder(rates, DefaultLimits()).WithClock(nil, func() time.Time { return builderNow })
}

func sampleRecord() RawTimeRecord {
	return RawTimeRecord{
		EmployeeID:     "E1",
		EmployeeName:   "Ana Ruiz",
		EmployeeNumber: "1001",
		ProjectID:      "P1",
		ProjectName:    "Harbor Tower",
		Date:           time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		WorkedHours:    hoursPtr(10),
	}
}

type failingRates struct{ err error }

func (f failingRates) LookupRate(context.Context, string, string) (RateProfile, error) {
	return RateProfile{}, f.err
}

func TestBuildCleanEntry(t *testing.T) {
	b := newTestBuilder(NewRateBook(testProfile()))

	entry, err := b.Build(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, "2025-01-10", entry.ReportID)
	assert.Equal(t, ReviewPending, entry.ReviewState)
	assert.Empty(t, entry.ReviewReasons)
	assert.InDelta(t, 8.0, entry.RegularHours, Tolerance)
	assert.InDelta(t, 2.0, entry.OvertimeHours, Tolerance)
	assert.InDelta(t, 10.0, entry.TotalHours, Tolerance)
	assert.Equal(t, "330.00", entry.TotalCost.StringFixed(2))
	assert.Equal(t, builderNow, entry.CreatedAt)
	assert.True(t, entry.Active())
}

func TestBuildMissingDepartureFlagsEntry(t *testing.T) {
	rec := sampleRecord()
	rec.WorkedHours = nil
	rec.Arrival = timePtr(time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC))

	entry, err := newTestBuilder(NewRateBook(testProfile())).Build(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, ReviewNeedsReview, entry.ReviewState)
	assert.Equal(t, []ReviewReason{ReasonInvalidTimestamps}, entry.ReviewReasons)
	assert.Zero(t, entry.TotalHours)
	assert.Zero(t, entry.RegularHours)
	assert.True(t, entry.TotalCost.IsZero())
	assert.Nil(t, entry.Departure)
}

func TestBuildMissingRateProfile(t *testing.T) {
	other := testProfile()
	other.ProjectID = "P9"

	entry, err := newTestBuilder(NewRateBook(other)).Build(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, ReviewNeedsReview, entry.ReviewState)
	assert.Contains(t, entry.ReviewReasons, ReasonMissingRateProfile)
	assert.InDelta(t, 10.0, entry.TotalHours, Tolerance)
	assert.True(t, entry.TotalCost.Equal(decimal.Zero))
}

func TestBuildRateStoreOutage(t *testing.T) {
	outage := errors.Join(ErrPersistenceUnavailable, errors.New("connection refused"))
	_, err := newTestBuilder(failingRates{err: outage}).Build(context.Background(), sampleRecord())
	require.ErrorIs(t, err, ErrPersistenceUnavailable)
}

func TestBuildRejectsMissingIdentity(t *testing.T) {
	b := newTestBuilder(NewRateBook(testProfile()))
	for name, mutate := range map[string]func(*RawTimeRecord){
		"employee": func(r *RawTimeRecord) { r.EmployeeID = " " },
		"project":  func(r *RawTimeRecord) { r.ProjectID = "" },
		"date":     func(r *RawTimeRecord) { r.Date = time.Time{} },
	} {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord()
			mutate(&rec)
			_, err := b.Build(context.Background(), rec)
			require.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestBuildNormalisesText(t *testing.T) {
	rec := sampleRecord()
	rec.EmployeeName = "  José   Peña "
	rec.ProjectName = "Harbor   Tower"
	rec.ActivityNotes = "poured slab\r\nstripped forms\r"

	entry, err := newTestBuilder(NewRateBook(testProfile())).Build(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "José Peña", entry.EmployeeName)
	assert.Equal(t, "Harbor Tower", entry.ProjectName)
	assert.Equal(t, "poured slab\nstripped forms", entry.ActivityNotes)
}

func TestBuildIsDeterministicApartFromID(t *testing.T) {
	id := uuid.MustParse("3b0f7f0e-1111-4c1e-9a57-2d1b0c9a0001")
	b := newTestBuilder(NewRateBook(testProfile())).WithClock(func() uuid.UUID { return id }, nil)

	first, err := b.Build(context.Background(), sampleRecord())
	require.NoError(t, err)
	second, err := b.Build(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRateBookPrefersMostSpecificProfile(t *testing.T) {
	projectWide := RateProfile{ProjectID: "P1", RegularRate: decimal.NewFromInt(20)}
	employeeWide := RateProfile{EmployeeID: "E1", RegularRate: decimal.NewFromInt(25)}
	exact := RateProfile{EmployeeID: "E1", ProjectID: "P1", RegularRate: decimal.NewFromInt(30)}
	book := NewRateBook(projectWide, employeeWide, exact)

	p, err := book.LookupRate(context.Background(), "E1", "P1")
	require.NoError(t, err)
	assert.True(t, p.RegularRate.Equal(decimal.NewFromInt(30)))

	p, err = book.LookupRate(context.Background(), "E1", "P2")
	require.NoError(t, err)
	assert.True(t, p.RegularRate.Equal(decimal.NewFromInt(25)))

	p, err = book.LookupRate(context.Background(), "E2", "P1")
	require.NoError(t, err)
	assert.True(t, p.RegularRate.Equal(decimal.NewFromInt(20)))

	_, err = book.LookupRate(context.Background(), "E2", "P2")
	require.ErrorIs(t, err, ErrMissingRateProfile)
}
