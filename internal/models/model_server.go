package models

import "time"

type ServerStatus string

const (
	ServerStatusActive      ServerStatus = "active"
	ServerStatusMaintenance ServerStatus = "maintenance"
	ServerStatusOffline     ServerStatus = "offline"
)

// Server is a physical/virtual hosting node managed through the
// account-management control plane.
type Server struct {
	ID              string       `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name            string       `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Hostname        string       `gorm:"column:hostname;type:varchar(255);not null" json:"hostname"`
	IP              string       `gorm:"column:ip;type:varchar(64);not null" json:"ip"`
	PanelType       string       `gorm:"column:panel_type;type:varchar(32);not null" json:"panel_type"`
	Status          ServerStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	CurrentAccounts int          `gorm:"column:current_accounts;not null;default:0" json:"current_accounts"`
	MaxAccounts     int          `gorm:"column:max_accounts;not null;default:0" json:"max_accounts"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (Server) TableName() string { return "server" }

// LoadRatio is the placement heuristic input; a full or zero-capacity server
// sorts last.
func (s *Server) LoadRatio() float64 {
	if s.MaxAccounts <= 0 {
		return 1
	}
	return float64(s.CurrentAccounts) / float64(s.MaxAccounts)
}

func (s *Server) HasCapacity() bool {
	return s.MaxAccounts <= 0 || s.CurrentAccounts < s.MaxAccounts
}
