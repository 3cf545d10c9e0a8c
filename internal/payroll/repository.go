package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitepay/internal/platform/db"
)

// Store is the entry persistence collaborator.
type Store interface {
	// Put inserts a new entry. When entry.Supersedes is set the superseded
	// entry is marked in the same transaction. Putting an id that is already
	// stored is a no-op.
	Put(ctx context.Context, entry PayrollEntry) error
	GetByDate(ctx context.Context, date time.Time, projectID string) ([]PayrollEntry, error)
	GetByID(ctx context.Context, id uuid.UUID) (PayrollEntry, error)
	ListByState(ctx context.Context, states []ReviewState, projectID string) ([]PayrollEntry, error)
	// CASUpdateState sets next only when the stored state equals expected.
	CASUpdateState(ctx context.Context, id uuid.UUID, expected, next ReviewState) (bool, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, report_id, employee_id, employee_name, employee_number, project_id, project_name,
work_date, regular_hours, overtime_hours, double_time_hours, total_hours,
regular_rate::text, overtime_rate::text, double_time_rate::text, total_cost::text,
arrival, departure, activity_notes, employee_specific_issues, review_state, review_reasons,
supersedes, superseded_by, created_at`

// Put implements Store.
func (r *Repository) Put(ctx context.Context, entry PayrollEntry) error {
	if entry.Supersedes == nil {
		return r.insert(ctx, r.pool, entry)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var stored bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_entries WHERE id = $1)`, entry.ID).Scan(&stored); err != nil {
			return unavailable("check entry", err)
		}
		if stored {
			return nil
		}
		tag, err := tx.Exec(ctx, `UPDATE payroll_entries SET superseded_by = $2 WHERE id = $1 AND superseded_by IS NULL`, *entry.Supersedes, entry.ID)
		if err != nil {
			return unavailable("supersede entry", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_entries WHERE id = $1)`, *entry.Supersedes).Scan(&exists); err != nil {
				return unavailable("check superseded entry", err)
			}
			if !exists {
				return fmt.Errorf("%w: superseded entry %s", ErrNotFound, entry.Supersedes)
			}
			return fmt.Errorf("%w: %s", ErrAlreadySuperseded, entry.Supersedes)
		}
		return r.insert(ctx, tx, entry)
	})
}

func (r *Repository) insert(ctx context.Context, q querier, e PayrollEntry) error {
	reasons := make([]string, len(e.ReviewReasons))
	for i, reason := range e.ReviewReasons {
		reasons[i] = string(reason)
	}
	_, err := q.Exec(ctx, `INSERT INTO payroll_entries (
id, report_id, employee_id, employee_name, employee_number, project_id, project_name,
work_date, regular_hours, overtime_hours, double_time_hours, total_hours,
regular_rate, overtime_rate, double_time_rate, total_cost,
arrival, departure, activity_notes, employee_specific_issues, review_state, review_reasons,
supersedes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::numeric,$14::numeric,$15::numeric,$16::numeric,$17,$18,$19,$20,$21,$22,$23,$24)
ON CONFLICT (id) DO NOTHING`,
		e.ID, e.ReportID, e.EmployeeID, e.EmployeeName, e.EmployeeNumber, e.ProjectID, e.ProjectName,
		e.Date, e.RegularHours, e.OvertimeHours, e.DoubleTimeHours, e.TotalHours,
		e.RegularRate.String(), e.OvertimeRate.String(), e.DoubleTimeRate.String(), e.TotalCost.StringFixed(2),
		e.Arrival, e.Departure, e.ActivityNotes, e.EmployeeSpecificIssues, string(e.ReviewState), reasons,
		e.Supersedes, e.CreatedAt)
	if err != nil {
		return unavailable("insert entry", err)
	}
	return nil
}

// GetByDate implements Store. Superseded entries are included; callers filter.
func (r *Repository) GetByDate(ctx context.Context, date time.Time, projectID string) ([]PayrollEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM payroll_entries
WHERE work_date = $1 AND ($2 = '' OR project_id = $2)
ORDER BY project_name, employee_name, id`, Day(date), projectID)
	if err != nil {
		return nil, unavailable("list entries by date", err)
	}
	return collectEntries(rows)
}

// GetByID implements Store.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (PayrollEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM payroll_entries WHERE id = $1`, id)
	if err != nil {
		return PayrollEntry{}, unavailable("get entry", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return PayrollEntry{}, err
	}
	if len(entries) == 0 {
		return PayrollEntry{}, ErrNotFound
	}
	return entries[0], nil
}

// ListByState implements Store for active entries only.
func (r *Repository) ListByState(ctx context.Context, states []ReviewState, projectID string) ([]PayrollEntry, error) {
	codes := make([]string, len(states))
	for i, s := range states {
		codes[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM payroll_entries
WHERE review_state = ANY($1) AND superseded_by IS NULL AND ($2 = '' OR project_id = $2)
ORDER BY work_date, project_name, employee_name, id`, codes, projectID)
	if err != nil {
		return nil, unavailable("list entries by state", err)
	}
	return collectEntries(rows)
}

// CASUpdateState implements Store as a single conditional UPDATE.
func (r *Repository) CASUpdateState(ctx context.Context, id uuid.UUID, expected, next ReviewState) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE payroll_entries SET review_state = $3 WHERE id = $1 AND review_state = $2`, id, string(expected), string(next))
	if err != nil {
		return false, unavailable("update review state", err)
	}
	return tag.RowsAffected() == 1, nil
}

func collectEntries(rows pgx.Rows) ([]PayrollEntry, error) {
	defer rows.Close()
	var entries []PayrollEntry
	for rows.Next() {
		var e PayrollEntry
		var regular, overtime, double, cost, state string
		var reasons []string
		if err := rows.Scan(
			&e.ID, &e.ReportID, &e.EmployeeID, &e.EmployeeName, &e.EmployeeNumber, &e.ProjectID, &e.ProjectName,
			&e.Date, &e.RegularHours, &e.OvertimeHours, &e.DoubleTimeHours, &e.TotalHours,
			&regular, &overtime, &double, &cost,
			&e.Arrival, &e.Departure, &e.ActivityNotes, &e.EmployeeSpecificIssues, &state, &reasons,
			&e.Supersedes, &e.SupersededBy, &e.CreatedAt,
		); err != nil {
			return nil, unavailable("scan entry", err)
		}
		var err error
		if e.RegularRate, err = decimal.NewFromString(regular); err != nil {
			return nil, fmt.Errorf("payroll: parse regular rate: %w", err)
		}
		if e.OvertimeRate, err = decimal.NewFromString(overtime); err != nil {
			return nil, fmt.Errorf("payroll: parse overtime rate: %w", err)
		}
		if e.DoubleTimeRate, err = decimal.NewFromString(double); err != nil {
			return nil, fmt.Errorf("payroll: parse double time rate: %w", err)
		}
		if e.TotalCost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("payroll: parse total cost: %w", err)
		}
		e.Date = Day(e.Date)
		e.ReviewState = ReviewState(state)
		for _, reason := range reasons {
			e.ReviewReasons = append(e.ReviewReasons, ReviewReason(reason))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate entries", err)
	}
	return entries, nil
}

// unavailable classifies driver failures as retryable persistence errors.
func unavailable(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistenceUnavailable, op, err)
}
