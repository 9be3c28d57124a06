package models

import "time"

type QueueItemType string

const (
	QueueItemTypeHosting       QueueItemType = "hosting"
	QueueItemTypeDomainRenewal QueueItemType = "domain_renewal"
)

type QueueItemStatus string

const (
	QueueItemStatusPending    QueueItemStatus = "pending"
	QueueItemStatusProcessing QueueItemStatus = "processing"
	QueueItemStatusCompleted  QueueItemStatus = "completed"
	QueueItemStatusFailed     QueueItemStatus = "failed"
	QueueItemStatusRetry      QueueItemStatus = "retry"
)

// ProvisioningQueueItem is the durable record of one side-effect attempt
// against a control plane, kept for retry bookkeeping and audit. A row stuck
// in processing marks a crash mid-call, which is operationally different from
// never attempted.
type ProvisioningQueueItem struct {
	ID          string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Type        QueueItemType   `gorm:"column:type;type:varchar(32);not null;index" json:"type"`
	RefID       string          `gorm:"column:ref_id;type:uuid;not null;index" json:"ref_id"`
	ServerID    *string         `gorm:"column:server_id;type:uuid;default:null" json:"server_id"`
	Priority    int             `gorm:"column:priority;not null;default:1" json:"priority"`
	Status      QueueItemStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Attempts    int             `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts int             `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	LastError   string          `gorm:"column:last_error;type:text" json:"last_error"`
	ScheduledAt time.Time       `gorm:"column:scheduled_at;not null" json:"scheduled_at"`
	StartedAt   *time.Time      `gorm:"column:started_at;default:null" json:"started_at"`
	CompletedAt *time.Time      `gorm:"column:completed_at;default:null" json:"completed_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (ProvisioningQueueItem) TableName() string { return "provisioning_queue_item" }

var queueItemTransitions = map[QueueItemStatus][]QueueItemStatus{
	QueueItemStatusPending:    {QueueItemStatusProcessing, QueueItemStatusFailed},
	QueueItemStatusProcessing: {QueueItemStatusCompleted, QueueItemStatusFailed},
	QueueItemStatusFailed:     {QueueItemStatusRetry},
	QueueItemStatusRetry:      {QueueItemStatusProcessing, QueueItemStatusFailed},
	QueueItemStatusCompleted:  {},
}

func (s QueueItemStatus) CanTransition(next QueueItemStatus) bool {
	for _, allowed := range queueItemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
