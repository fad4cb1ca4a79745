package webhooks

import "time"

// Webhook is one registered change subscription on the remote service.
// Cursor is the position in the payload stream; it only ever moves forward.
type Webhook struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Table        string `gorm:"column:table_name;size:100;uniqueIndex;not null" json:"table_name"`
	TableID      string `gorm:"size:32" json:"table_id"`
	BaseID       string `gorm:"size:32" json:"base_id"`
	RemoteHookID string `gorm:"size:64;index" json:"remote_hook_id"`
	MACSecret    string `gorm:"size:128" json:"-"`
	Cursor       int    `gorm:"default:1" json:"cursor"`
	ExpiresAt    string `gorm:"size:40" json:"expires_at"`
}

// TableName maps Webhook to its fixed table.
func (Webhook) TableName() string {
	return "remote_webhooks"
}
