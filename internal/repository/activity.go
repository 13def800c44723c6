package repository

import (
	"context"
	"strings"

	"gatehouse/internal/models"

	"gorm.io/gorm"
)

// ActivityRepository stores the society audit trail.
type ActivityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	// ListBySociety returns newest entries first; actionPrefix filters case-insensitively.
	ListBySociety(ctx context.Context, society, actionPrefix string, limit int) ([]models.ActivityLog, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository returns a new ActivityRepository implementation.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *activityRepository) ListBySociety(ctx context.Context, society, actionPrefix string, limit int) ([]models.ActivityLog, error) {
	q := r.db.WithContext(ctx).Where("society_name = ?", society)
	if p := strings.TrimSpace(actionPrefix); p != "" {
		q = q.Where("LOWER(action) LIKE ?", strings.ToLower(p)+"%")
	}
	var out []models.ActivityLog
	if err := q.Order("created_at DESC").Order("id DESC").Limit(clampLimit(limit)).Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}
