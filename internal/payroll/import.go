package payroll

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// ImportRow is the CSV layout accepted for bulk time record imports.
// Timestamps are RFC 3339; worked_hours is optional when both are present.
type ImportRow struct {
	EmployeeID             string `csv:"employee_id"`
	EmployeeName           string `csv:"employee_name"`
	EmployeeNumber         string `csv:"employee_number"`
	ProjectID              string `csv:"project_id"`
	ProjectName            string `csv:"project_name"`
	Date                   string `csv:"date"`
	WorkedHours            string `csv:"worked_hours"`
	Arrival                string `csv:"arrival"`
	Departure              string `csv:"departure"`
	ActivityNotes          string `csv:"activity_notes"`
	EmployeeSpecificIssues string `csv:"employee_specific_issues"`
	Supersedes             string `csv:"supersedes"`
}

// ParseImportCSV decodes rows into raw records. A malformed row fails the
// whole file with its 1-based data row number.
func ParseImportCSV(r io.Reader) ([]RawTimeRecord, error) {
	var rows []*ImportRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, errors.Join(ErrInvalidRecord, err)
	}
	records := make([]RawTimeRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := row.Record()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Record converts the row, leaving blank optional fields unset.
func (row ImportRow) Record() (RawTimeRecord, error) {
	rec := RawTimeRecord{
		EmployeeID:             row.EmployeeID,
		EmployeeName:           row.EmployeeName,
		EmployeeNumber:         row.EmployeeNumber,
		ProjectID:              row.ProjectID,
		ProjectName:            row.ProjectName,
		ActivityNotes:          row.ActivityNotes,
		EmployeeSpecificIssues: row.EmployeeSpecificIssues,
	}
	if strings.TrimSpace(row.Date) != "" {
		date, err := ParseDate(row.Date)
		if err != nil {
			return RawTimeRecord{}, errors.Join(ErrInvalidRecord, fmt.Errorf("date: %w", err))
		}
		rec.Date = date
	}
	if v := strings.TrimSpace(row.WorkedHours); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return RawTimeRecord{}, errors.Join(ErrInvalidRecord, fmt.Errorf("worked_hours: %w", err))
		}
		rec.WorkedHours = &hours
	}
	var err error
	if rec.Arrival, err = parseTimestamp("arrival", row.Arrival); err != nil {
		return RawTimeRecord{}, err
	}
	if rec.Departure, err = parseTimestamp("departure", row.Departure); err != nil {
		return RawTimeRecord{}, err
	}
	if v := strings.TrimSpace(row.Supersedes); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return RawTimeRecord{}, errors.Join(ErrInvalidRecord, fmt.Errorf("supersedes: %w", err))
		}
		rec.Supersedes = &id
	}
	return rec, nil
}

func parseTimestamp(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errors.Join(ErrInvalidRecord, fmt.Errorf("%s: %w", field, err))
	}
	return &t, nil
}
