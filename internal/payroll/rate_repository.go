package payroll

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RateRepository resolves rate profiles stored in PostgreSQL.
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository constructs a RateRepository.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// LookupRate implements RateSource with the same precedence as RateBook.
func (r *RateRepository) LookupRate(ctx context.Context, employeeID, projectID string) (RateProfile, error) {
	rows, err := r.pool.Query(ctx, `SELECT employee_id, project_id,
regular_rate::text, overtime_rate::text, double_time_rate::text,
regular_threshold, overtime_threshold
FROM rate_profiles
WHERE (employee_id = $1 AND project_id IN ($2, ''))
   OR (employee_id = '' AND project_id = $2)`, employeeID, projectID)
	if err != nil {
		return RateProfile{}, unavailable("lookup rate", err)
	}
	defer rows.Close()

	var candidates []RateProfile
	for rows.Next() {
		var p RateProfile
		var regular, overtime, double string
		if err := rows.Scan(&p.EmployeeID, &p.ProjectID, &regular, &overtime, &double, &p.Thresholds.Regular, &p.Thresholds.Overtime); err != nil {
			return RateProfile{}, unavailable("scan rate", err)
		}
		if p.RegularRate, err = decimal.NewFromString(regular); err != nil {
			return RateProfile{}, fmt.Errorf("payroll: parse regular rate: %w", err)
		}
		if p.OvertimeRate, err = decimal.NewFromString(overtime); err != nil {
			return RateProfile{}, fmt.Errorf("payroll: parse overtime rate: %w", err)
		}
		if p.DoubleTimeRate, err = decimal.NewFromString(double); err != nil {
			return RateProfile{}, fmt.Errorf("payroll: parse double time rate: %w", err)
		}
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return RateProfile{}, unavailable("iterate rates", err)
	}
	return bestProfile(candidates, employeeID, projectID)
}

// UpsertRate stores or replaces the profile keyed by employee and project.
func (r *RateRepository) UpsertRate(ctx context.Context, p RateProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO rate_profiles (employee_id, project_id, regular_rate, overtime_rate, double_time_rate, regular_threshold, overtime_threshold)
VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7)
ON CONFLICT (employee_id, project_id) DO UPDATE SET
regular_rate = EXCLUDED.regular_rate,
overtime_rate = EXCLUDED.overtime_rate,
double_time_rate = EXCLUDED.double_time_rate,
regular_threshold = EXCLUDED.regular_threshold,
overtime_threshold = EXCLUDED.overtime_threshold`,
		p.EmployeeID, p.ProjectID, p.RegularRate.String(), p.OvertimeRate.String(), p.DoubleTimeRate.String(),
		p.Thresholds.Regular, p.Thresholds.Overtime)
	if err != nil {
		return unavailable("upsert rate", err)
	}
	return nil
}
