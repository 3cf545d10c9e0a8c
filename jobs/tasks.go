package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPayrollIngest classifies and stores an uploaded batch of time records.
	TaskPayrollIngest = "payroll:ingest"
	// TaskPayrollReportWarmup rebuilds cached daily reports for recent days.
	TaskPayrollReportWarmup = "payroll:report_warmup"
)

// PayrollIngestPayload carries an uploaded CSV batch.
type PayrollIngestPayload struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Source         string `json:"source,omitempty"`
	CSV            []byte `json:"csv"`
}

// PayrollReportWarmupPayload selects how many trailing days to warm.
type PayrollReportWarmupPayload struct {
	Days int `json:"days"`
}

// NewPayrollIngestTask constructs an ingest task.
func NewPayrollIngestTask(payload PayrollIngestPayload) (*asynq.Task, error) {
	if len(payload.CSV) == 0 {
		return nil, errors.New("jobs: payroll ingest payload empty")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollIngest, data, asynq.Queue(QueueDefault)), nil
}

// NewPayrollReportWarmupTask constructs a warmup task.
func NewPayrollReportWarmupTask(days int) (*asynq.Task, error) {
	if days <= 0 {
		days = 1
	}
	data, err := json.Marshal(PayrollReportWarmupPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollReportWarmup, data, asynq.Queue(QueueDefault)), nil
}
