package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobType string

const (
	JobTypeRecurring JobType = "recurring"
	JobTypeManual    JobType = "manual"
)

type JobStatus string

const (
	JobStatusRunning             JobStatus = "running"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
)

// ScheduledJobRecord is the ledger row for one invocation of a periodic task.
// It is inserted as running and updated exactly once at completion.
type ScheduledJobRecord struct {
	ID           string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	JobName      string            `gorm:"column:job_name;type:varchar(128);not null;index" json:"job_name"`
	JobType      JobType           `gorm:"column:job_type;type:varchar(32);not null" json:"job_type"`
	Status       JobStatus         `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	StartedAt    time.Time         `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at;default:null" json:"completed_at"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	ErrorMessage string            `gorm:"column:error_message;type:text" json:"error_message"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (ScheduledJobRecord) TableName() string { return "scheduled_job_record" }

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusRunning:             {JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed},
	JobStatusCompleted:           {},
	JobStatusCompletedWithErrors: {},
	JobStatusFailed:              {},
}

func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
