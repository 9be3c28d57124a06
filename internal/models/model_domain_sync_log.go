package models

import (
	"time"

	"gorm.io/datatypes"
)

type SyncLogStatus string

const (
	SyncLogStatusSuccess          SyncLogStatus = "success"
	SyncLogStatusMismatchDetected SyncLogStatus = "mismatch_detected"
	SyncLogStatusFailed           SyncLogStatus = "failed"
)

// FieldMismatch is one diverging field in a sync comparison.
type FieldMismatch struct {
	Local    any `json:"local"`
	Provider any `json:"provider"`
}

// DomainSyncLog is the append-only audit trail of reconciliation runs, one
// row per domain processed. Never mutated after insert.
type DomainSyncLog struct {
	ID               string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	DomainID         string         `gorm:"column:domain_id;type:uuid;not null;index" json:"domain_id"`
	SyncType         string         `gorm:"column:sync_type;type:varchar(32);not null" json:"sync_type"`
	Status           SyncLogStatus  `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	LocalSnapshot    datatypes.JSON `gorm:"column:local_snapshot;type:jsonb;default:'{}'" json:"local_snapshot"`
	ProviderSnapshot datatypes.JSON `gorm:"column:provider_snapshot;type:jsonb;default:'{}'" json:"provider_snapshot"`
	Mismatches       datatypes.JSONType[map[string]FieldMismatch] `gorm:"column:mismatches;type:jsonb;default:'{}'" json:"mismatches"`
	ErrorMessage     string         `gorm:"column:error_message;type:text" json:"error_message"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (DomainSyncLog) TableName() string { return "domain_sync_log" }
