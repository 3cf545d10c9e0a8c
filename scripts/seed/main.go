package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitepay/internal/app"
	"github.com/odyssey-erp/sitepay/internal/payroll"
	"github.com/odyssey-erp/sitepay/migrations"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	deps, err := app.OpenDeps(ctx, cfg, logger, nil)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer deps.Close(logger)

	fmt.Println("→ Applying migrations...")
	if _, err := migrations.Apply(ctx, deps.Pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	fmt.Println("→ Seeding rate profiles...")
	if err := seedRates(ctx, deps.Rates); err != nil {
		log.Fatalf("seed rates: %v", err)
	}

	fmt.Println("→ Seeding time records...")
	day := payroll.Day(time.Now())
	result, err := deps.Payroll.Ingest(ctx, sampleRecords(day))
	if err != nil {
		log.Fatalf("seed records: %v", err)
	}

	fmt.Printf("✓ Seed complete: %d entries for %s, %d need review\n", len(result.Entries), payroll.ReportKey(day), result.NeedsReview)
}

func seedRates(ctx context.Context, rates *payroll.RateRepository) error {
	profiles := []payroll.RateProfile{
		{ProjectID: "P-HARBOR", RegularRate: decimal.RequireFromString("30"), OvertimeRate: decimal.RequireFromString("45"), DoubleTimeRate: decimal.RequireFromString("60")},
		{ProjectID: "P-TOWER", RegularRate: decimal.RequireFromString("28"), OvertimeRate: decimal.RequireFromString("42"), DoubleTimeRate: decimal.RequireFromString("56")},
		{EmployeeID: "E-100", RegularRate: decimal.RequireFromString("35"), OvertimeRate: decimal.RequireFromString("52.5"), DoubleTimeRate: decimal.RequireFromString("70")},
		{EmployeeID: "E-101", ProjectID: "P-TOWER", RegularRate: decimal.RequireFromString("32"), OvertimeRate: decimal.RequireFromString("48"), DoubleTimeRate: decimal.RequireFromString("64"),
			Thresholds: payroll.Thresholds{Regular: 10, Overtime: 12}.Override()},
	}
	for _, p := range profiles {
		if err := rates.UpsertRate(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func sampleRecords(day time.Time) []payroll.RawTimeRecord {
	at := func(hour, minute int) *time.Time {
		t := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
		return &t
	}
	hours := func(h float64) *float64 { return &h }
	return []payroll.RawTimeRecord{
		{EmployeeID: "E-100", EmployeeName: "Ana Reyes", EmployeeNumber: "100", ProjectID: "P-HARBOR", ProjectName: "Harbor Bridge",
			Date: day, Arrival: at(7, 0), Departure: at(17, 0), ActivityNotes: "Formwork, deck section 4"},
		{EmployeeID: "E-101", EmployeeName: "Ben Okafor", EmployeeNumber: "101", ProjectID: "P-TOWER", ProjectName: "Tower Block C",
			Date: day, WorkedHours: hours(13), ActivityNotes: "Crane signalling, late pour"},
		{EmployeeID: "E-102", EmployeeName: "Chen Li", EmployeeNumber: "102", ProjectID: "P-TOWER", ProjectName: "Tower Block C",
			Date: day, Arrival: at(6, 30), ActivityNotes: "Rebar tying", EmployeeSpecificIssues: "Left site without clocking out"},
		{EmployeeID: "E-103", EmployeeName: "Dana Price", EmployeeNumber: "103", ProjectID: "P-HARBOR", ProjectName: "Harbor Bridge",
			Date: day, WorkedHours: hours(8), ActivityNotes: "Survey, \"north\" abutment, levels"},
	}
}
