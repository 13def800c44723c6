// Package models contains data structures for the application's domain models.
package models

import "time"

// Role identifies what a principal may do inside its society.
type Role string

const (
	RoleGuard    Role = "guard"
	RoleResident Role = "resident"
	RoleAdmin    Role = "admin"
	RoleBusiness Role = "business"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuard, RoleResident, RoleAdmin, RoleBusiness:
		return true
	}
	return false
}

// User is the principal record. Account management lives outside this
// service; the engine only reads role, society and flat from it.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FullName    string    `gorm:"size:120;not null" json:"full_name"`
	Phone       string    `gorm:"size:20;index" json:"phone"`
	Email       string    `gorm:"size:255;index" json:"email,omitempty"`
	Role        Role      `gorm:"column:user_type;type:varchar(20);not null;index:idx_users_society_role" json:"user_type"`
	SocietyName string    `gorm:"size:120;not null;index:idx_users_society_role" json:"society_name"`
	FlatNumber  string    `gorm:"size:20;index" json:"flat_number,omitempty"`
	IsApproved  bool      `gorm:"default:false" json:"is_approved"`
	IsAdmin     bool      `gorm:"default:false" json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
