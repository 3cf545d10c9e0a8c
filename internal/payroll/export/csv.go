package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/odyssey-erp/sitepay/internal/payroll"
)

// ContentType is the media type of the daily export.
const ContentType = "text/csv; charset=utf-8"

const csvBufferSize = 32 * 1024

// Header lists the fixed export columns.
var Header = []string{
	"Employee Name",
	"Employee Number",
	"Project",
	"Regular Hours",
	"Overtime Hours",
	"Double Time Hours",
	"Total Hours",
	"Cost",
	"Issues",
}

// ReportSource loads the daily report to export.
type ReportSource interface {
	GetDailyReport(ctx context.Context, date time.Time, projectFilter string) (payroll.DailyReport, error)
}

// WriteDailyCSV serialises a report in its entry order. The output depends
// only on the report, so repeated calls are byte-identical. Records end in
// LF: csv.Writer with UseCRLF also rewrites newlines inside quoted fields.
func WriteDailyCSV(w io.Writer, report payroll.DailyReport) error {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)

	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, entry := range report.Entries {
		if err := writer.Write(Row(entry)); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

// Row renders a single entry in Header column order.
func Row(e payroll.PayrollEntry) []string {
	return []string{
		e.EmployeeName,
		e.EmployeeNumber,
		e.ProjectName,
		FormatHours(e.RegularHours),
		FormatHours(e.OvertimeHours),
		FormatHours(e.DoubleTimeHours),
		FormatHours(e.TotalHours),
		e.TotalCost.StringFixed(2),
		e.EmployeeSpecificIssues,
	}
}

// FormatHours renders hours with one decimal.
func FormatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 1, 64)
}

// Daily loads the report for date and renders it to CSV.
func Daily(ctx context.Context, source ReportSource, date time.Time) ([]byte, error) {
	report, err := source.GetDailyReport(ctx, date, "")
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := WriteDailyCSV(&out, report); err != nil {
		return nil, fmt.Errorf("export: write daily csv: %w", err)
	}
	return out.Bytes(), nil
}

// Filename is the attachment name for a daily export.
func Filename(date time.Time) string {
	return "payroll-" + payroll.ReportKey(date) + ".csv"
}
