package payroll

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar day format used for report ids and URLs.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDuration indicates missing or inconsistent worked time.
	ErrInvalidDuration = errors.New("payroll: invalid duration")
	// ErrMissingRateProfile indicates no rate profile matched the record.
	ErrMissingRateProfile = errors.New("payroll: missing rate profile")
	// ErrNotFound indicates an unknown entry.
	ErrNotFound = errors.New("payroll: not found")
	// ErrPersistenceUnavailable wraps failures of the entry or rate store.
	ErrPersistenceUnavailable = errors.New("payroll: persistence unavailable")
	// ErrInvalidTransition indicates a review state change outside the transition table.
	ErrInvalidTransition = errors.New("payroll: invalid review transition")
	// ErrInvalidRecord indicates a raw record missing identity fields.
	ErrInvalidRecord = errors.New("payroll: invalid record")
	// ErrAlreadySuperseded indicates a correction targets an entry that was already replaced.
	ErrAlreadySuperseded = errors.New("payroll: entry already superseded")
)

// RawTimeRecord is one employee's worked time on one project for one day.
type RawTimeRecord struct {
	EmployeeID             string
	EmployeeName           string
	EmployeeNumber         string
	ProjectID              string
	ProjectName            string
	Date                   time.Time
	WorkedHours            *float64
	Arrival                *time.Time
	Departure              *time.Time
	ActivityNotes          string
	EmployeeSpecificIssues string
	Supersedes             *uuid.UUID
}

// Validate ensures the record carries the identity fields an entry needs.
func (r RawTimeRecord) Validate() error {
	if strings.TrimSpace(r.EmployeeID) == "" {
		return errors.Join(ErrInvalidRecord, errors.New("employee id required"))
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		return errors.Join(ErrInvalidRecord, errors.New("project id required"))
	}
	if r.Date.IsZero() {
		return errors.Join(ErrInvalidRecord, errors.New("date required"))
	}
	return nil
}

// PayrollEntry is a classified, costed time record.
type PayrollEntry struct {
	ID                     uuid.UUID       `json:"id"`
	ReportID               string          `json:"report_id"`
	EmployeeID             string          `json:"employee_id"`
	EmployeeName           string          `json:"employee_name"`
	EmployeeNumber         string          `json:"employee_number"`
	ProjectID              string          `json:"project_id"`
	ProjectName            string          `json:"project_name"`
	Date                   time.Time       `json:"date"`
	RegularHours           float64         `json:"regular_hours"`
	OvertimeHours          float64         `json:"overtime_hours"`
	DoubleTimeHours        float64         `json:"double_time_hours"`
	TotalHours             float64         `json:"total_hours"`
	RegularRate            decimal.Decimal `json:"regular_rate"`
	OvertimeRate           decimal.Decimal `json:"overtime_rate"`
	DoubleTimeRate         decimal.Decimal `json:"double_time_rate"`
	TotalCost              decimal.Decimal `json:"total_cost"`
	Arrival                *time.Time      `json:"arrival,omitempty"`
	Departure              *time.Time      `json:"departure,omitempty"`
	ActivityNotes          string          `json:"activity_notes,omitempty"`
	EmployeeSpecificIssues string          `json:"employee_specific_issues,omitempty"`
	ReviewState            ReviewState     `json:"review_state"`
	ReviewReasons          []ReviewReason  `json:"review_reasons,omitempty"`
	Supersedes             *uuid.UUID      `json:"supersedes,omitempty"`
	SupersededBy           *uuid.UUID      `json:"superseded_by,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

// Active reports whether the entry still counts towards reports and the review queue.
func (e PayrollEntry) Active() bool {
	return e.SupersededBy == nil
}

// ProjectSummary holds per-project subtotals inside a daily report.
type ProjectSummary struct {
	ProjectID            string          `json:"project_id"`
	ProjectName          string          `json:"project_name"`
	EntryCount           int             `json:"entry_count"`
	TotalRegularHours    float64         `json:"total_regular_hours"`
	TotalOvertimeHours   float64         `json:"total_overtime_hours"`
	TotalDoubleTimeHours float64         `json:"total_double_time_hours"`
	TotalHours           float64         `json:"total_hours"`
	TotalCost            decimal.Decimal `json:"total_cost"`
}

// DailyReport is the aggregation of all active entries for one day.
type DailyReport struct {
	ReportID             string           `json:"report_id"`
	Date                 time.Time        `json:"date"`
	ProjectFilter        string           `json:"project_filter,omitempty"`
	EntryCount           int              `json:"entry_count"`
	TotalEmployees       int              `json:"total_employees"`
	TotalRegularHours    float64          `json:"total_regular_hours"`
	TotalOvertimeHours   float64          `json:"total_overtime_hours"`
	TotalDoubleTimeHours float64          `json:"total_double_time_hours"`
	TotalHours           float64          `json:"total_hours"`
	TotalCost            decimal.Decimal  `json:"total_cost"`
	Projects             []ProjectSummary `json:"projects"`
	Entries              []PayrollEntry   `json:"entries"`
}

// Day returns the calendar day of t as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// ReportKey is the stable identity of the daily report covering date.
func ReportKey(date time.Time) string {
	return Day(date).Format(DateLayout)
}
