// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"gatehouse/internal/database"
	"gatehouse/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory database with the full schema.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// Every connection to ":memory:" is its own database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given role in society.
func CreateUser(t testing.TB, db *gorm.DB, role models.Role, society, flat, name string) *models.User {
	t.Helper()
	u := &models.User{
		FullName:    name,
		Phone:       "555-0100",
		Role:        role,
		SocietyName: society,
		FlatNumber:  flat,
		IsApproved:  true,
		IsAdmin:     role == models.RoleAdmin,
	}
	if err := db.WithContext(context.Background()).Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateVisitor inserts a visitor record in the given state.
func CreateVisitor(t testing.TB, db *gorm.DB, society, flat string, l models.LifecycleState, p models.PermissionState) *models.VisitorRecord {
	t.Helper()
	rec := &models.VisitorRecord{
		SocietyName:      society,
		FlatNumber:       flat,
		VisitorName:      "Visitor " + flat,
		VisitorPhone:     "999",
		Purpose:          "Delivery",
		Status:           l,
		PermissionStatus: p,
		IsPreApproved:    l == models.LifecyclePreApproved,
	}
	if l == models.LifecycleInside || l == models.LifecycleExited {
		now := time.Now().UTC()
		rec.EntryTime = &now
		if l == models.LifecycleExited {
			rec.ExitTime = &now
		}
	}
	if err := db.WithContext(context.Background()).Create(rec).Error; err != nil {
		t.Fatalf("create visitor: %v", err)
	}
	return rec
}
