package payroll

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ReviewState enumerates the review lifecycle of an entry.
type ReviewState string

const (
	// ReviewPending indicates no anomaly detected and no explicit review yet.
	ReviewPending ReviewState = "PENDING"
	// ReviewNeedsReview indicates an anomaly that blocks payroll until reviewed.
	ReviewNeedsReview ReviewState = "NEEDS_REVIEW"
	// ReviewReviewed is terminal for an entry instance.
	ReviewReviewed ReviewState = "REVIEWED"
)

// reviewTransitions lists every allowed state change. Anything absent is illegal.
var reviewTransitions = map[ReviewState][]ReviewState{
	ReviewPending:     {ReviewNeedsReview, ReviewReviewed},
	ReviewNeedsReview: {ReviewReviewed},
	ReviewReviewed:    nil,
}

// Valid reports whether s is a known state.
func (s ReviewState) Valid() bool {
	_, ok := reviewTransitions[s]
	return ok
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to ReviewState) bool {
	for _, next := range reviewTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseReviewState converts user input into a ReviewState.
func ParseReviewState(value string) (ReviewState, error) {
	s := ReviewState(strings.ToUpper(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("payroll: unknown review state %q", value)
	}
	return s, nil
}

// ReviewReason is a machine-readable cause for NeedsReview.
type ReviewReason string

const (
	ReasonInvalidTimestamps  ReviewReason = "INVALID_TIMESTAMPS"
	ReasonMissingDuration    ReviewReason = "MISSING_DURATION"
	ReasonEmployeeIssue      ReviewReason = "EMPLOYEE_ISSUE"
	ReasonHoursOutOfRange    ReviewReason = "HOURS_OUT_OF_RANGE"
	ReasonTierMismatch       ReviewReason = "TIER_MISMATCH"
	ReasonMissingRateProfile ReviewReason = "MISSING_RATE_PROFILE"
)

// Verdict is the Evaluator's decision for one entry.
type Verdict struct {
	State   ReviewState
	Reasons []ReviewReason
}

// NeedsReview reports whether the verdict requires manual attention.
func (v Verdict) NeedsReview() bool {
	return v.State == ReviewNeedsReview
}

// Evaluate inspects the source record and its classification. classifyErr is
// whatever Classify or the rate lookup returned for the record.
func Evaluate(rec RawTimeRecord, c Classification, classifyErr error, limits Limits) Verdict {
	var reasons []ReviewReason
	add := func(r ReviewReason) {
		for _, existing := range reasons {
			if existing == r {
				return
			}
		}
		reasons = append(reasons, r)
	}

	hasArrival := rec.Arrival != nil && !rec.Arrival.IsZero()
	hasDeparture := rec.Departure != nil && !rec.Departure.IsZero()
	switch {
	case hasArrival && hasDeparture && !rec.Departure.After(*rec.Arrival):
		add(ReasonInvalidTimestamps)
	case rec.WorkedHours == nil && (hasArrival != hasDeparture):
		add(ReasonInvalidTimestamps)
	case rec.WorkedHours == nil && !hasArrival && !hasDeparture:
		add(ReasonMissingDuration)
	}
	if errors.Is(classifyErr, ErrInvalidDuration) {
		if rec.WorkedHours != nil {
			add(ReasonHoursOutOfRange)
		} else if len(reasons) == 0 {
			add(ReasonMissingDuration)
		}
	}
	if errors.Is(classifyErr, ErrMissingRateProfile) {
		add(ReasonMissingRateProfile)
	}
	if strings.TrimSpace(rec.EmployeeSpecificIssues) != "" {
		add(ReasonEmployeeIssue)
	}
	if c.TotalHours < 0 || c.TotalHours > limits.maxDaily() || math.IsNaN(c.TotalHours) {
		add(ReasonHoursOutOfRange)
	}
	if c.RegularHours < 0 || c.OvertimeHours < 0 || c.DoubleTimeHours < 0 ||
		math.Abs(c.TierSum()-c.TotalHours) > Tolerance {
		add(ReasonTierMismatch)
	}

	if len(reasons) > 0 {
		return Verdict{State: ReviewNeedsReview, Reasons: reasons}
	}
	return Verdict{State: ReviewPending}
}
