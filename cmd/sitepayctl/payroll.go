package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/sitepay/cmd/sitepayctl/cli"
	"github.com/odyssey-erp/sitepay/internal/app"
	"github.com/odyssey-erp/sitepay/internal/payroll"
	"github.com/odyssey-erp/sitepay/internal/payroll/export"
)

func importCmd() *cobra.Command {
	var async bool
	var source string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Ingest a CSV of time records",
		Long: `Classify and store every row of a time record CSV.

Columns: employee_id, employee_name, employee_number, project_id, project_name,
date, worked_hours, arrival, departure, activity_notes, employee_specific_issues,
supersedes. Use "-" to read from stdin. With --async the file is queued for
the worker instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if source == "" {
				source = args[0]
			}
			if async {
				redisAddr, err := redisAddr()
				if err != nil {
					return err
				}
				jobsCLI, err := cli.NewJobsCLI(redisAddr)
				if err != nil {
					return err
				}
				defer func() { _ = jobsCLI.Close() }()
				info, err := jobsCLI.EnqueueImport(cmd.Context(), source, data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", info.ID, info.Queue)
				return nil
			}
			return withDeps(cmd, func(deps *app.Deps) error {
				records, err := payroll.ParseImportCSV(bytes.NewReader(data))
				if err != nil {
					return err
				}
				result, err := deps.Payroll.Ingest(cmd.Context(), records)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "stored %d entries, %d need review, %d rejected\n", len(result.Entries), result.NeedsReview, len(result.Failures))
				for _, f := range result.Failures {
					fmt.Fprintf(out, "  row %d: %s\n", f.Index+1, f.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "queue the file for the worker")
	cmd.Flags().StringVar(&source, "source", "", "label recorded with the upload (defaults to the file name)")
	return cmd
}

func reportCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "report DATE",
		Short: "Print the daily report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := payroll.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
			return withDeps(cmd, func(deps *app.Deps) error {
				report, err := deps.Payroll.GetDailyReport(cmd.Context(), date, project)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "restrict to one project id")
	return cmd
}

func exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export DATE",
		Short: "Write the daily CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := payroll.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
			return withDeps(cmd, func(deps *app.Deps) error {
				data, err := export.Daily(cmd.Context(), deps.Payroll, date)
				if err != nil {
					return err
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if output == "." {
					output = export.Filename(date)
				}
				return os.WriteFile(output, data, 0o644)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file ("." for the default name, empty for stdout)`)
	return cmd
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and clear the review queue",
	}

	var project string
	list := &cobra.Command{
		Use:   "list",
		Short: "List entries awaiting review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, func(deps *app.Deps) error {
				entries, err := deps.Payroll.ListNeedsReview(cmd.Context(), project)
				if err != nil {
					return err
				}
				return writeQueue(cmd.OutOrStdout(), entries)
			})
		},
	}
	list.Flags().StringVar(&project, "project", "", "restrict to one project id")

	var actor string
	mark := &cobra.Command{
		Use:   "mark ID",
		Short: "Mark an entry reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry id: %w", err)
			}
			return withDeps(cmd, func(deps *app.Deps) error {
				if err := deps.Payroll.MarkReviewed(cmd.Context(), id, actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s reviewed\n", id)
				return nil
			})
		},
	}
	mark.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "who reviewed the entry")

	cmd.AddCommand(list, mark)
	return cmd
}

func writeQueue(out io.Writer, entries []payroll.PayrollEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "review queue is empty")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tPROJECT\tEMPLOYEE\tSTATE\tHOURS\tREASONS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%v\n",
			e.ID, e.ReportID, e.ProjectName, e.EmployeeName, e.ReviewState, export.FormatHours(e.TotalHours), e.ReviewReasons)
	}
	return w.Flush()
}

func ratesCmd() *cobra.Command {
	var profile payroll.RateProfile
	var regular, overtime, double string
	var regularHours, overtimeHours float64
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Create or replace a rate profile",
		Long: `Store the wage rates for an employee, a project, or an employee on a project.

The most specific profile wins: employee+project, then employee, then project.
Threshold flags that are not given fall back to the configured defaults.
An explicit --regular-hours=0 pays every hour up to the overtime ceiling at
the overtime rate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if profile.RegularRate, err = decimal.NewFromString(regular); err != nil {
				return fmt.Errorf("regular rate: %w", err)
			}
			if profile.OvertimeRate, err = decimal.NewFromString(overtime); err != nil {
				return fmt.Errorf("overtime rate: %w", err)
			}
			if profile.DoubleTimeRate, err = decimal.NewFromString(double); err != nil {
				return fmt.Errorf("double time rate: %w", err)
			}
			if cmd.Flags().Changed("regular-hours") {
				profile.Thresholds.Regular = &regularHours
			}
			if cmd.Flags().Changed("overtime-hours") {
				profile.Thresholds.Overtime = &overtimeHours
			}
			return withDeps(cmd, func(deps *app.Deps) error {
				return deps.Rates.UpsertRate(cmd.Context(), profile)
			})
		},
	}
	cmd.Flags().StringVar(&profile.EmployeeID, "employee", "", "employee id")
	cmd.Flags().StringVar(&profile.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&regular, "regular", "0", "regular hourly rate")
	cmd.Flags().StringVar(&overtime, "overtime", "0", "overtime hourly rate")
	cmd.Flags().StringVar(&double, "double", "0", "double time hourly rate")
	cmd.Flags().Float64Var(&regularHours, "regular-hours", 0, "hours paid at the regular rate (unset inherits the engine value)")
	cmd.Flags().Float64Var(&overtimeHours, "overtime-hours", 0, "hours after which double time applies (unset inherits the engine value)")
	return cmd
}
