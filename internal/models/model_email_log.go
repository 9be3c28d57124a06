package models

import "time"

type EmailLogStatus string

const (
	EmailLogStatusQueued EmailLogStatus = "queued"
	EmailLogStatusSent   EmailLogStatus = "sent"
	EmailLogStatusFailed EmailLogStatus = "failed"
)

// EmailLog records one attempt to hand a message to the mail collaborator.
// Sends are fire-and-forget; the row is what notifications link back to.
type EmailLog struct {
	ID        string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID    string         `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Recipient string         `gorm:"column:recipient;type:varchar(255);not null" json:"recipient"`
	Template  string         `gorm:"column:template;type:varchar(128);not null" json:"template"`
	Subject   string         `gorm:"column:subject;type:varchar(255)" json:"subject"`
	Status    EmailLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Error     string         `gorm:"column:error;type:text" json:"error"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (EmailLog) TableName() string { return "email_log" }
