package payroll

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

const (
	// DefaultRegularCeiling is the number of hours paid at the regular rate.
	DefaultRegularCeiling = 8.0
	// DefaultOvertimeCeiling is the number of hours after which double time applies.
	DefaultOvertimeCeiling = 12.0
	// DefaultMaxDailyHours is the sanity ceiling for a single day.
	DefaultMaxDailyHours = 24.0
	// Tolerance bounds floating drift when comparing hour sums.
	Tolerance = 1e-6
)

// Thresholds separate regular, overtime and double-time hours.
type Thresholds struct {
	Regular  float64 `json:"regular"`
	Overtime float64 `json:"overtime"`
}

// DefaultThresholds returns the 8h/12h split.
func DefaultThresholds() Thresholds {
	return Thresholds{Regular: DefaultRegularCeiling, Overtime: DefaultOvertimeCeiling}
}

// Validate rejects negative or inverted ceilings.
func (t Thresholds) Validate() error {
	if t.Regular < 0 || t.Overtime < 0 {
		return errors.New("payroll: thresholds must not be negative")
	}
	if t.Overtime < t.Regular {
		return errors.New("payroll: overtime ceiling below regular ceiling")
	}
	return nil
}

// Override returns an override that sets both ceilings to t.
func (t Thresholds) Override() ThresholdOverride {
	regular, overtime := t.Regular, t.Overtime
	return ThresholdOverride{Regular: &regular, Overtime: &overtime}
}

// ThresholdOverride replaces some or all of the engine thresholds for a rate
// profile. A nil ceiling inherits the engine value; zero is a real ceiling,
// so Regular=0 pays every hour up to Overtime at the overtime rate.
type ThresholdOverride struct {
	Regular  *float64 `json:"regular,omitempty"`
	Overtime *float64 `json:"overtime,omitempty"`
}

// Validate rejects negative ceilings, and inverted ones when both are set.
func (o ThresholdOverride) Validate() error {
	if (o.Regular != nil && *o.Regular < 0) || (o.Overtime != nil && *o.Overtime < 0) {
		return errors.New("payroll: thresholds must not be negative")
	}
	if o.Regular != nil && o.Overtime != nil && *o.Overtime < *o.Regular {
		return errors.New("payroll: overtime ceiling below regular ceiling")
	}
	return nil
}

// Apply fills the set ceilings over base and normalises o >= r.
func (o ThresholdOverride) Apply(base Thresholds) Thresholds {
	out := base
	if o.Regular != nil {
		out.Regular = *o.Regular
	}
	if o.Overtime != nil {
		out.Overtime = *o.Overtime
	}
	if out.Overtime < out.Regular {
		out.Overtime = out.Regular
	}
	return out
}

// RateProfile carries the wage rates for an employee or a project.
// An empty EmployeeID makes the profile project-wide; an empty ProjectID
// makes it apply to the employee on any project.
type RateProfile struct {
	EmployeeID     string            `json:"employee_id,omitempty"`
	ProjectID      string            `json:"project_id,omitempty"`
	RegularRate    decimal.Decimal   `json:"regular_rate"`
	OvertimeRate   decimal.Decimal   `json:"overtime_rate"`
	DoubleTimeRate decimal.Decimal   `json:"double_time_rate"`
	Thresholds     ThresholdOverride `json:"thresholds"`
}

// Validate ensures rates are non-negative and thresholds coherent.
func (p RateProfile) Validate() error {
	if p.EmployeeID == "" && p.ProjectID == "" {
		return errors.New("payroll: rate profile needs employee or project")
	}
	if p.RegularRate.IsNegative() || p.OvertimeRate.IsNegative() || p.DoubleTimeRate.IsNegative() {
		return errors.New("payroll: rates must not be negative")
	}
	return p.Thresholds.Validate()
}

// specificity ranks how closely a profile matches a record.
func (p RateProfile) specificity(employeeID, projectID string) int {
	switch {
	case p.EmployeeID == employeeID && p.ProjectID == projectID:
		return 3
	case p.EmployeeID == employeeID && p.ProjectID == "":
		return 2
	case p.EmployeeID == "" && p.ProjectID == projectID:
		return 1
	default:
		return 0
	}
}

// RateSource resolves the rate profile for an employee/project pair.
type RateSource interface {
	LookupRate(ctx context.Context, employeeID, projectID string) (RateProfile, error)
}

// RateBook is an in-memory RateSource, used for static configuration and tests.
type RateBook struct {
	profiles []RateProfile
}

// NewRateBook builds a RateBook from the given profiles.
func NewRateBook(profiles ...RateProfile) *RateBook {
	return &RateBook{profiles: append([]RateProfile(nil), profiles...)}
}

// LookupRate returns the most specific profile; employee+project beats
// employee-wide, which beats project-wide.
func (b *RateBook) LookupRate(_ context.Context, employeeID, projectID string) (RateProfile, error) {
	if b == nil {
		return RateProfile{}, ErrMissingRateProfile
	}
	return bestProfile(b.profiles, employeeID, projectID)
}

func bestProfile(profiles []RateProfile, employeeID, projectID string) (RateProfile, error) {
	best := -1
	bestRank := 0
	for i, p := range profiles {
		if rank := p.specificity(employeeID, projectID); rank > bestRank {
			best, bestRank = i, rank
		}
	}
	if best < 0 {
		return RateProfile{}, ErrMissingRateProfile
	}
	return profiles[best], nil
}

// Limits groups the engine-wide configuration passed into Builder calls.
type Limits struct {
	Defaults      Thresholds
	MaxDailyHours float64
}

// DefaultLimits returns 8h/12h thresholds and a 24h ceiling.
func DefaultLimits() Limits {
	return Limits{Defaults: DefaultThresholds(), MaxDailyHours: DefaultMaxDailyHours}
}

func (l Limits) maxDaily() float64 {
	if l.MaxDailyHours <= 0 {
		return DefaultMaxDailyHours
	}
	return l.MaxDailyHours
}
