package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DomainPricing is the configured renewal price per extension.
type DomainPricing struct {
	ID           string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Extension    string          `gorm:"column:extension;type:varchar(32);not null;index" json:"extension"`
	RenewalPrice decimal.Decimal `gorm:"column:renewal_price;type:numeric(12,2);not null" json:"renewal_price"`
	Active       bool            `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (DomainPricing) TableName() string { return "domain_pricing" }
