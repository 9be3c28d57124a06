package models

import "time"

type NotificationTargetType string

const (
	NotificationTargetDomain         NotificationTargetType = "domain"
	NotificationTargetHostingAccount NotificationTargetType = "hosting_account"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
)

// NotificationTypeAutoRenewed marks a successful last-day auto-renewal; the
// remaining types are threshold labels like "7_day".
const NotificationTypeAutoRenewed = "auto_renewed"

// ExpiryNotification tracks expiry fan-out. The unique index over
// (target_type, target_id, notification_type) enforces the at-most-once
// invariant at the store layer, closing the pre-check race.
type ExpiryNotification struct {
	ID               string                 `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TargetType       NotificationTargetType `gorm:"column:target_type;type:varchar(32);not null;uniqueIndex:unique_target_notification,priority:1" json:"target_type"`
	TargetID         string                 `gorm:"column:target_id;type:uuid;not null;uniqueIndex:unique_target_notification,priority:2" json:"target_id"`
	UserID           string                 `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	NotificationType string                 `gorm:"column:notification_type;type:varchar(32);not null;uniqueIndex:unique_target_notification,priority:3" json:"notification_type"`
	DaysBeforeExpiry int                    `gorm:"column:days_before_expiry;not null;default:0" json:"days_before_expiry"`
	Status           NotificationStatus     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	EmailLogID       *string                `gorm:"column:email_log_id;type:uuid;default:null" json:"email_log_id"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

func (ExpiryNotification) TableName() string { return "expiry_notification" }
