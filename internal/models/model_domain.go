package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type DomainStatus string

const (
	DomainStatusActive         DomainStatus = "active"
	DomainStatusPendingRenewal DomainStatus = "pending_renewal"
	DomainStatusExpired        DomainStatus = "expired"
	DomainStatusGracePeriod    DomainStatus = "grace_period"
)

type DomainSyncStatus string

const (
	DomainSyncStatusSynced   DomainSyncStatus = "synced"
	DomainSyncStatusMismatch DomainSyncStatus = "mismatch"
	DomainSyncStatusFailed   DomainSyncStatus = "failed"
)

// RenewableStatuses are the domain states a renewal may be issued from.
var RenewableStatuses = []DomainStatus{
	DomainStatusActive,
	DomainStatusPendingRenewal,
	DomainStatusExpired,
	DomainStatusGracePeriod,
}

func (s DomainStatus) Renewable() bool {
	for _, st := range RenewableStatuses {
		if st == s {
			return true
		}
	}
	return false
}

type Domain struct {
	ID                    string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID                string           `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Name                  string           `gorm:"column:name;type:varchar(255);not null;uniqueIndex" json:"name"`
	Extension             string           `gorm:"column:extension;type:varchar(32);not null;index" json:"extension"`
	Status                DomainStatus     `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	ExpiryDate            *time.Time       `gorm:"column:expiry_date;default:null;index" json:"expiry_date"`
	Nameservers           datatypes.JSON   `gorm:"column:nameservers;type:jsonb;default:'[]'" json:"nameservers"`
	AutoRenew             bool             `gorm:"column:auto_renew;not null;default:false" json:"auto_renew"`
	SyncStatus            DomainSyncStatus `gorm:"column:sync_status;type:varchar(32);not null;default:'synced'" json:"sync_status"`
	RegistrarDomainID     string           `gorm:"column:registrar_domain_id;type:varchar(128)" json:"registrar_domain_id"`
	LastSyncedAt          *time.Time       `gorm:"column:last_synced_at;default:null;index" json:"last_synced_at"`
	LastRenewedAt         *time.Time       `gorm:"column:last_renewed_at;default:null" json:"last_renewed_at"`
	AutoRenewFailedAt     *time.Time       `gorm:"column:auto_renew_failed_at;default:null" json:"auto_renew_failed_at"`
	AutoRenewFailureReason string          `gorm:"column:auto_renew_failure_reason;type:varchar(255)" json:"auto_renew_failure_reason"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func (Domain) TableName() string { return "domain" }

// ExtensionOf derives the registrar extension from a domain name
// ("shop.example.co.uk" -> "co.uk" is out of scope; everything after the
// first label is treated as the extension).
func ExtensionOf(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[i+1:]
	}
	return ""
}
