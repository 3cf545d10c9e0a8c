package payroll

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hoursPtr(h float64) *float64 { return &h }

func timePtr(t time.Time) *time.Time { return &t }

func testProfile() RateProfile {
	return RateProfile{
		ProjectID:      "P1",
		RegularRate:    decimal.RequireFromString("30"),
		OvertimeRate:   decimal.RequireFromString("45"),
		DoubleTimeRate: decimal.RequireFromString("60"),
	}
}

func TestSplitHoursScenarios(t *testing.T) {
	cases := []struct {
		name               string
		total              float64
		regular, over, dbl float64
	}{
		{name: "under regular", total: 6, regular: 6},
		{name: "exactly regular", total: 8, regular: 8},
		{name: "ten hours", total: 10, regular: 8, over: 2},
		{name: "exactly overtime ceiling", total: 12, regular: 8, over: 4},
		{name: "thirteen hours", total: 13, regular: 8, over: 4, dbl: 1},
		{name: "zero", total: 0},
		{name: "negative", total: -3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, o, d := SplitHours(tc.total, DefaultThresholds())
			assert.InDelta(t, tc.regular, r, Tolerance)
			assert.InDelta(t, tc.over, o, Tolerance)
			assert.InDelta(t, tc.dbl, d, Tolerance)
		})
	}
}

func TestSplitHoursTiersSumToTotal(t *testing.T) {
	thresholds := []Thresholds{
		DefaultThresholds(),
		{Regular: 10, Overtime: 12},
		{Regular: 8, Overtime: 8},
		{Regular: 0, Overtime: 4},
	}
	for _, th := range thresholds {
		for total := 0.0; total <= 30; total += 0.25 {
			r, o, d := SplitHours(total, th)
			require.GreaterOrEqual(t, r, 0.0)
			require.GreaterOrEqual(t, o, 0.0)
			require.GreaterOrEqual(t, d, 0.0)
			require.InDelta(t, total, r+o+d, Tolerance, "total=%v thresholds=%+v", total, th)
		}
	}
}

func TestSplitHoursInvertedThresholdsTreatedAsEqual(t *testing.T) {
	r, o, d := SplitHours(11, Thresholds{Regular: 9, Overtime: 6})
	assert.InDelta(t, 9.0, r, Tolerance)
	assert.InDelta(t, 0.0, o, Tolerance)
	assert.InDelta(t, 2.0, d, Tolerance)
}

func TestWorkedHoursPrefersExplicitHours(t *testing.T) {
	arrival := time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC)
	rec := RawTimeRecord{
		WorkedHours: hoursPtr(9.5),
		Arrival:     timePtr(arrival),
		Departure:   timePtr(arrival.Add(3 * time.Hour)),
	}
	h, err := WorkedHours(rec)
	require.NoError(t, err)
	assert.Equal(t, 9.5, h)
}

func TestWorkedHoursFromTimestamps(t *testing.T) {
	arrival := time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC)
	h, err := WorkedHours(RawTimeRecord{Arrival: timePtr(arrival), Departure: timePtr(arrival.Add(10*time.Hour + 30*time.Minute))})
	require.NoError(t, err)
	assert.InDelta(t, 10.5, h, Tolerance)
}

func TestWorkedHoursInvalid(t *testing.T) {
	arrival := time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC)
	cases := map[string]RawTimeRecord{
		"missing departure":  {Arrival: timePtr(arrival)},
		"missing arrival":    {Departure: timePtr(arrival)},
		"nothing":            {},
		"departure first":    {Arrival: timePtr(arrival), Departure: timePtr(arrival.Add(-time.Hour))},
		"same instant":       {Arrival: timePtr(arrival), Departure: timePtr(arrival)},
		"negative hours":     {WorkedHours: hoursPtr(-1)},
		"not a number hours": {WorkedHours: hoursPtr(math.NaN())},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := WorkedHours(rec)
			assert.True(t, errors.Is(err, ErrInvalidDuration), "got %v", err)
		})
	}
}

func TestClassifyCostsTiers(t *testing.T) {
	c, err := Classify(RawTimeRecord{WorkedHours: hoursPtr(13)}, testProfile(), DefaultThresholds())
	require.NoError(t, err)
	assert.InDelta(t, 8.0, c.RegularHours, Tolerance)
	assert.InDelta(t, 4.0, c.OvertimeHours, Tolerance)
	assert.InDelta(t, 1.0, c.DoubleTimeHours, Tolerance)
	// 8*30 + 4*45 + 1*60
	assert.Equal(t, "480.00", c.Cost.StringFixed(2))
}

func TestClassifyUsesProfileThresholds(t *testing.T) {
	profile := testProfile()
	profile.Thresholds = ThresholdOverride{Regular: hoursPtr(10)}
	c, err := Classify(RawTimeRecord{WorkedHours: hoursPtr(11)}, profile, DefaultThresholds())
	require.NoError(t, err)
	assert.InDelta(t, 10.0, c.RegularHours, Tolerance)
	assert.InDelta(t, 1.0, c.OvertimeHours, Tolerance)
	assert.InDelta(t, 0.0, c.DoubleTimeHours, Tolerance)
}

func TestClassifyZeroRegularCeiling(t *testing.T) {
	profile := testProfile()
	profile.Thresholds = ThresholdOverride{Regular: hoursPtr(0)}
	c, err := Classify(RawTimeRecord{WorkedHours: hoursPtr(13)}, profile, DefaultThresholds())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, c.RegularHours, Tolerance)
	assert.InDelta(t, 12.0, c.OvertimeHours, Tolerance)
	assert.InDelta(t, 1.0, c.DoubleTimeHours, Tolerance)
	// 12*45 + 1*60
	assert.Equal(t, "600.00", c.Cost.StringFixed(2))
}

func TestClassifyInvalidDurationIsZero(t *testing.T) {
	c, err := Classify(RawTimeRecord{}, testProfile(), DefaultThresholds())
	require.ErrorIs(t, err, ErrInvalidDuration)
	assert.Zero(t, c.TierSum())
	assert.True(t, c.Cost.IsZero())
}

func TestCostRoundsHalfUpOnce(t *testing.T) {
	profile := RateProfile{
		RegularRate:    decimal.RequireFromString("10.005"),
		OvertimeRate:   decimal.Zero,
		DoubleTimeRate: decimal.Zero,
	}
	// 1 * 10.005 = 10.005 -> 10.01
	assert.Equal(t, "10.01", Cost(1, 0, 0, profile).StringFixed(2))

	profile = RateProfile{
		RegularRate:    decimal.RequireFromString("0.333"),
		OvertimeRate:   decimal.RequireFromString("0.333"),
		DoubleTimeRate: decimal.RequireFromString("0.333"),
	}
	// Rounding each tier first would give 0.33*3 = 0.99; the exact sum 0.999 rounds to 1.00.
	assert.Equal(t, "1.00", Cost(1, 1, 1, profile).StringFixed(2))
}
