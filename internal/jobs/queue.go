package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// JobType names an asynchronous unit of work. The core submits these
// fire-and-forget; execution failures are only visible through Poll.
type JobType string

const (
	JobReminderBatch   JobType = "reminder_batch"
	JobMonthlyReport   JobType = "monthly_report"
	JobTreatmentExport JobType = "treatment_export"
)

func (t JobType) Valid() bool {
	switch t {
	case JobReminderBatch, JobMonthlyReport, JobTreatmentExport:
		return true
	}
	return false
}

type JobState string

const (
	StatePending JobState = "pending"
	StateRunning JobState = "running"
	StateDone    JobState = "done"
	StateFailed  JobState = "failed"
)

type JobStatus struct {
	ID          string         `json:"id"`
	Type        JobType        `json:"type"`
	State       JobState       `json:"state"`
	Result      string         `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrUnknownJobType = fmt.Errorf("unknown job type")
)

// Queue is the job submission interface injected into the API layer.
// Submit failures surface synchronously; submitted jobs run to completion
// or failure on their own and are never cancelled.
type Queue interface {
	Submit(ctx context.Context, jobType JobType, payload map[string]any) (string, error)
	Poll(ctx context.Context, jobID string) (*JobStatus, error)
}
