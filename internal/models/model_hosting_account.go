package models

import "time"

type HostingAccountStatus string

const (
	HostingAccountStatusPending            HostingAccountStatus = "pending"
	HostingAccountStatusActive             HostingAccountStatus = "active"
	HostingAccountStatusSuspended          HostingAccountStatus = "suspended"
	HostingAccountStatusTerminated         HostingAccountStatus = "terminated"
	HostingAccountStatusProvisioningFailed HostingAccountStatus = "provisioning_failed"
)

// HostingAccount is the local record of an account that exists (or existed) on
// a control-plane server. Rows are never deleted; termination is a status.
type HostingAccount struct {
	ID               string               `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID           string               `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	OrderID          string               `gorm:"column:order_id;type:uuid;not null;uniqueIndex" json:"order_id"`
	ServerID         string               `gorm:"column:server_id;type:uuid;not null;index" json:"server_id"`
	Username         string               `gorm:"column:username;type:varchar(64);not null" json:"username"`
	Domain           string               `gorm:"column:domain;type:varchar(255);not null" json:"domain"`
	PackageName      string               `gorm:"column:package_name;type:varchar(128);not null" json:"package_name"`
	Status           HostingAccountStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	DiskUsedMB       int64                `gorm:"column:disk_used_mb;not null;default:0" json:"disk_used_mb"`
	DiskLimitMB      int64                `gorm:"column:disk_limit_mb;not null;default:0" json:"disk_limit_mb"`
	BandwidthUsedMB  int64                `gorm:"column:bandwidth_used_mb;not null;default:0" json:"bandwidth_used_mb"`
	BandwidthLimitMB int64                `gorm:"column:bandwidth_limit_mb;not null;default:0" json:"bandwidth_limit_mb"`
	MailboxCount     int                  `gorm:"column:mailbox_count;not null;default:0" json:"mailbox_count"`
	MailboxLimit     int                  `gorm:"column:mailbox_limit;not null;default:0" json:"mailbox_limit"`
	DatabaseCount    int                  `gorm:"column:database_count;not null;default:0" json:"database_count"`
	DatabaseLimit    int                  `gorm:"column:database_limit;not null;default:0" json:"database_limit"`
	SSLStatus        string               `gorm:"column:ssl_status;type:varchar(32)" json:"ssl_status"`
	ExpiryDate       *time.Time           `gorm:"column:expiry_date;default:null" json:"expiry_date"`
	LastSyncedAt     *time.Time           `gorm:"column:last_synced_at;default:null" json:"last_synced_at"`
	SuspendedAt      *time.Time           `gorm:"column:suspended_at;default:null" json:"suspended_at"`
	SuspensionReason string               `gorm:"column:suspension_reason;type:varchar(255)" json:"suspension_reason"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func (HostingAccount) TableName() string { return "hosting_account" }

var hostingAccountTransitions = map[HostingAccountStatus][]HostingAccountStatus{
	HostingAccountStatusPending:            {HostingAccountStatusActive, HostingAccountStatusProvisioningFailed},
	HostingAccountStatusActive:             {HostingAccountStatusSuspended, HostingAccountStatusTerminated},
	HostingAccountStatusSuspended:          {HostingAccountStatusActive, HostingAccountStatusTerminated},
	HostingAccountStatusProvisioningFailed: {HostingAccountStatusActive},
	HostingAccountStatusTerminated:         {},
}

// CanTransition reports whether moving to next is a legal status change.
// Terminated is terminal.
func (s HostingAccountStatus) CanTransition(next HostingAccountStatus) bool {
	for _, allowed := range hostingAccountTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
