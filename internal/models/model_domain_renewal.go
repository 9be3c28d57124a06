package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RenewalType string

const (
	RenewalTypeManual RenewalType = "manual"
	RenewalTypeAuto   RenewalType = "auto"
)

type RenewalStatus string

const (
	RenewalStatusPending   RenewalStatus = "pending"
	RenewalStatusCompleted RenewalStatus = "completed"
	RenewalStatusFailed    RenewalStatus = "failed"
)

// DomainRenewal records one renewal attempt. Rows are immutable once they
// reach completed or failed.
type DomainRenewal struct {
	ID             string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	DomainID       string          `gorm:"column:domain_id;type:uuid;not null;index" json:"domain_id"`
	RenewalType    RenewalType     `gorm:"column:renewal_type;type:varchar(32);not null" json:"renewal_type"`
	PeriodYears    int             `gorm:"column:period_years;not null;default:1" json:"period_years"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	PreviousExpiry *time.Time      `gorm:"column:previous_expiry;default:null" json:"previous_expiry"`
	NewExpiry      *time.Time      `gorm:"column:new_expiry;default:null" json:"new_expiry"`
	Status         RenewalStatus   `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	PaymentID      string          `gorm:"column:payment_id;type:varchar(128)" json:"payment_id"`
	FailureReason  string          `gorm:"column:failure_reason;type:varchar(255)" json:"failure_reason"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (DomainRenewal) TableName() string { return "domain_renewal" }
