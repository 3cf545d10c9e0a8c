package payroll

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Aggregate folds the active entries for date (optionally limited to one
// project) into a DailyReport. The input order never affects the result:
// entries are sorted first and totals are summed in that order.
func Aggregate(date time.Time, projectFilter string, entries []PayrollEntry) DailyReport {
	day := Day(date)
	report := DailyReport{
		ReportID:      ReportKey(day),
		Date:          day,
		ProjectFilter: projectFilter,
		TotalCost:     decimal.Zero,
		Projects:      []ProjectSummary{},
		Entries:       []PayrollEntry{},
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.Active() || !Day(e.Date).Equal(day) {
			continue
		}
		if projectFilter != "" && e.ProjectID != projectFilter {
			continue
		}
		key := e.ID.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		report.Entries = append(report.Entries, e)
	}
	SortEntries(report.Entries)

	employees := make(map[string]struct{})
	projectIdx := make(map[string]int)
	for _, e := range report.Entries {
		report.EntryCount++
		employees[e.EmployeeID] = struct{}{}
		report.TotalRegularHours += e.RegularHours
		report.TotalOvertimeHours += e.OvertimeHours
		report.TotalDoubleTimeHours += e.DoubleTimeHours
		report.TotalHours += e.TotalHours
		report.TotalCost = report.TotalCost.Add(e.TotalCost)

		idx, ok := projectIdx[e.ProjectID]
		if !ok {
			idx = len(report.Projects)
			projectIdx[e.ProjectID] = idx
			report.Projects = append(report.Projects, ProjectSummary{
				ProjectID:   e.ProjectID,
				ProjectName: e.ProjectName,
				TotalCost:   decimal.Zero,
			})
		}
		p := &report.Projects[idx]
		p.EntryCount++
		p.TotalRegularHours += e.RegularHours
		p.TotalOvertimeHours += e.OvertimeHours
		p.TotalDoubleTimeHours += e.DoubleTimeHours
		p.TotalHours += e.TotalHours
		p.TotalCost = p.TotalCost.Add(e.TotalCost)
	}
	report.TotalEmployees = len(employees)
	return report
}

// SortEntries orders entries by project name, then employee name. Employee
// number, project id and entry id break ties so the order is total.
func SortEntries(entries []PayrollEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ProjectName != b.ProjectName {
			return a.ProjectName < b.ProjectName
		}
		if a.EmployeeName != b.EmployeeName {
			return a.EmployeeName < b.EmployeeName
		}
		if a.EmployeeNumber != b.EmployeeNumber {
			return a.EmployeeNumber < b.EmployeeNumber
		}
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		return a.ID.String() < b.ID.String()
	})
}
