package database

import "gatehouse/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.VisitorRecord{},
		&models.NotificationRecord{},
		&models.ActivityLog{},
	}
}
