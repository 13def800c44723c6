package models

import "time"

// Notification types written by the engine.
const (
	NotificationVisitorPermission = "visitor_permission"
	NotificationGeneral           = "general"
)

// NotificationRecord is a durable inbox entry owned by a single recipient.
type NotificationRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_notifications_user_read" json:"user_id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"size:40;not null;default:'general'" json:"type"`
	RelatedID *uint     `json:"related_id,omitempty"`
	IsRead    bool      `gorm:"default:false;index:idx_notifications_user_read" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (NotificationRecord) TableName() string {
	return "notifications"
}
