package models

import "time"

// ServerPackage maps a billing plan name to the provider-side package on a
// given server. Orders whose plan has no mapping fall back to the configured
// baseline package.
type ServerPackage struct {
	ID          string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ServerID    string    `gorm:"column:server_id;type:uuid;not null;uniqueIndex:unique_server_plan,priority:1" json:"server_id"`
	PlanName    string    `gorm:"column:plan_name;type:varchar(128);not null;uniqueIndex:unique_server_plan,priority:2" json:"plan_name"`
	PackageName string    `gorm:"column:package_name;type:varchar(128);not null" json:"package_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ServerPackage) TableName() string { return "server_package" }
