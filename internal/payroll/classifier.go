package payroll

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Classification is the tier split and cost of one record.
type Classification struct {
	TotalHours      float64
	RegularHours    float64
	OvertimeHours   float64
	DoubleTimeHours float64
	RegularRate     decimal.Decimal
	OvertimeRate    decimal.Decimal
	DoubleTimeRate  decimal.Decimal
	Cost            decimal.Decimal
}

// TierSum returns regular + overtime + double time.
func (c Classification) TierSum() float64 {
	return c.RegularHours + c.OvertimeHours + c.DoubleTimeHours
}

// WorkedHours derives the total worked duration of a record. An explicit
// hour count wins over arrival/departure timestamps.
func WorkedHours(rec RawTimeRecord) (float64, error) {
	if rec.WorkedHours != nil {
		h := *rec.WorkedHours
		if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 {
			return 0, fmt.Errorf("%w: worked hours %v", ErrInvalidDuration, h)
		}
		return h, nil
	}
	if rec.Arrival == nil || rec.Departure == nil || rec.Arrival.IsZero() || rec.Departure.IsZero() {
		return 0, fmt.Errorf("%w: arrival and departure required", ErrInvalidDuration)
	}
	if !rec.Departure.After(*rec.Arrival) {
		return 0, fmt.Errorf("%w: departure not after arrival", ErrInvalidDuration)
	}
	return rec.Departure.Sub(*rec.Arrival).Hours(), nil
}

// SplitHours divides total into regular, overtime and double-time tiers.
// For any non-negative total the three tiers sum back to total.
func SplitHours(total float64, t Thresholds) (regular, overtime, doubleTime float64) {
	if total <= 0 {
		return 0, 0, 0
	}
	r, o := t.Regular, t.Overtime
	if o < r {
		o = r
	}
	regular = math.Min(total, r)
	overtime = clamp(math.Min(total, o)-r, 0, o-r)
	doubleTime = math.Max(total-o, 0)
	return regular, overtime, doubleTime
}

// Cost prices the tiers with exact decimal products and rounds half-up to cents once.
func Cost(regular, overtime, doubleTime float64, p RateProfile) decimal.Decimal {
	sum := decimal.NewFromFloat(regular).Mul(p.RegularRate).
		Add(decimal.NewFromFloat(overtime).Mul(p.OvertimeRate)).
		Add(decimal.NewFromFloat(doubleTime).Mul(p.DoubleTimeRate))
	return roundCents(sum)
}

// Classify converts a raw record into hour tiers and cost using profile.
// On ErrInvalidDuration the classification is all zero.
func Classify(rec RawTimeRecord, profile RateProfile, defaults Thresholds) (Classification, error) {
	total, err := WorkedHours(rec)
	if err != nil {
		return Classification{Cost: decimal.Zero}, err
	}
	thresholds := profile.Thresholds.Apply(defaults)
	regular, overtime, doubleTime := SplitHours(total, thresholds)
	return Classification{
		TotalHours:      total,
		RegularHours:    regular,
		OvertimeHours:   overtime,
		DoubleTimeHours: doubleTime,
		RegularRate:     profile.RegularRate,
		OvertimeRate:    profile.OvertimeRate,
		DoubleTimeRate:  profile.DoubleTimeRate,
		Cost:            Cost(regular, overtime, doubleTime, profile),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundCents rounds half away from zero; costs are never negative so this is half-up.
func roundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
