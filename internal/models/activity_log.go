package models

import "time"

// ActivityLog is the tenant-visible audit trail of engine actions.
type ActivityLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Action      string    `gorm:"size:60;not null;index" json:"action"`
	Description string    `gorm:"type:text" json:"description"`
	UserID      uint      `gorm:"index" json:"user_id"`
	UserName    string    `gorm:"size:120" json:"user_name"`
	UserType    Role      `gorm:"type:varchar(20)" json:"user_type"`
	SocietyName string    `gorm:"size:120;not null;index" json:"society_name"`
	Device      string    `gorm:"size:120" json:"device,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (ActivityLog) TableName() string {
	return "activity_logs"
}
