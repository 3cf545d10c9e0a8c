package payroll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewTransitions(t *testing.T) {
	cases := []struct {
		from, to ReviewState
		allowed  bool
	}{
		{ReviewPending, ReviewNeedsReview, true},
		{ReviewPending, ReviewReviewed, true},
		{ReviewNeedsReview, ReviewReviewed, true},
		{ReviewNeedsReview, ReviewPending, false},
		{ReviewReviewed, ReviewPending, false},
		{ReviewReviewed, ReviewNeedsReview, false},
		{ReviewReviewed, ReviewReviewed, false},
		{ReviewState("UNKNOWN"), ReviewReviewed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseReviewState(t *testing.T) {
	s, err := ParseReviewState(" needs_review ")
	require.NoError(t, err)
	assert.Equal(t, ReviewNeedsReview, s)

	_, err = ParseReviewState("approved")
	require.Error(t, err)
}

func TestEvaluateCleanRecordIsPending(t *testing.T) {
	rec := RawTimeRecord{WorkedHours: hoursPtr(10)}
	c, err := Classify(rec, testProfile(), DefaultThresholds())
	require.NoError(t, err)

	v := Evaluate(rec, c, nil, DefaultLimits())
	assert.Equal(t, ReviewPending, v.State)
	assert.Empty(t, v.Reasons)
	assert.False(t, v.NeedsReview())
}

func TestEvaluateReasons(t *testing.T) {
	arrival := time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		rec  RawTimeRecord
		want []ReviewReason
	}{
		{
			name: "missing departure",
			rec:  RawTimeRecord{Arrival: timePtr(arrival)},
			want: []ReviewReason{ReasonInvalidTimestamps},
		},
		{
			name: "departure before arrival",
			rec:  RawTimeRecord{Arrival: timePtr(arrival), Departure: timePtr(arrival.Add(-2 * time.Hour))},
			want: []ReviewReason{ReasonInvalidTimestamps},
		},
		{
			name: "no duration at all",
			rec:  RawTimeRecord{},
			want: []ReviewReason{ReasonMissingDuration},
		},
		{
			name: "negative hours",
			rec:  RawTimeRecord{WorkedHours: hoursPtr(-2)},
			want: []ReviewReason{ReasonHoursOutOfRange},
		},
		{
			name: "over daily ceiling",
			rec:  RawTimeRecord{WorkedHours: hoursPtr(25)},
			want: []ReviewReason{ReasonHoursOutOfRange},
		},
		{
			name: "employee issue",
			rec:  RawTimeRecord{WorkedHours: hoursPtr(8), EmployeeSpecificIssues: "left early, injured"},
			want: []ReviewReason{ReasonEmployeeIssue},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Classify(tc.rec, testProfile(), DefaultThresholds())
			v := Evaluate(tc.rec, c, err, DefaultLimits())
			assert.Equal(t, ReviewNeedsReview, v.State)
			assert.Equal(t, tc.want, v.Reasons)
		})
	}
}

func TestEvaluateMissingRateProfile(t *testing.T) {
	rec := RawTimeRecord{WorkedHours: hoursPtr(8)}
	c, err := Classify(rec, RateProfile{}, DefaultThresholds())
	require.NoError(t, err)

	v := Evaluate(rec, c, ErrMissingRateProfile, DefaultLimits())
	assert.Equal(t, []ReviewReason{ReasonMissingRateProfile}, v.Reasons)
}

func TestEvaluateTierMismatch(t *testing.T) {
	c := Classification{TotalHours: 10, RegularHours: 8}
	v := Evaluate(RawTimeRecord{WorkedHours: hoursPtr(10)}, c, nil, DefaultLimits())
	assert.Equal(t, []ReviewReason{ReasonTierMismatch}, v.Reasons)
}

func TestEvaluateCustomCeiling(t *testing.T) {
	rec := RawTimeRecord{WorkedHours: hoursPtr(14)}
	c, err := Classify(rec, testProfile(), DefaultThresholds())
	require.NoError(t, err)

	limits := DefaultLimits()
	limits.MaxDailyHours = 12
	assert.Equal(t, []ReviewReason{ReasonHoursOutOfRange}, Evaluate(rec, c, nil, limits).Reasons)
	assert.Empty(t, Evaluate(rec, c, nil, DefaultLimits()).Reasons)
}
