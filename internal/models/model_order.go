package models

import "time"

type OrderType string

const (
	OrderTypeHosting OrderType = "hosting"
	OrderTypeDomain  OrderType = "domain"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID         string      `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID     string      `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Type       OrderType   `gorm:"column:type;type:varchar(32);not null" json:"type"`
	PlanName   string      `gorm:"column:plan_name;type:varchar(128);not null" json:"plan_name"`
	DomainName string      `gorm:"column:domain_name;type:varchar(255);not null" json:"domain_name"`
	Status     OrderStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	StartDate  *time.Time  `gorm:"column:start_date;default:null" json:"start_date"`
	ExpiryDate *time.Time  `gorm:"column:expiry_date;default:null" json:"expiry_date"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (Order) TableName() string { return "order" }
