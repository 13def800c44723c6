package repository

import (
	"context"
	"time"

	"gatehouse/internal/models"
	"gatehouse/internal/tenancy"

	"gorm.io/gorm"
)

// VisitorFilter narrows a scoped visitor listing. Zero fields do not filter.
type VisitorFilter struct {
	Lifecycle      models.LifecycleState
	Permission     models.PermissionState
	PermissionIn   []models.PermissionState
	LifecycleNotIn []models.LifecycleState
	// ExpectedOn matches records expected on that calendar day (UTC) or with no expected date.
	ExpectedOn *time.Time
	Limit      int
	Offset     int
}

// VisitorRepository is the canonical store of visit records.
type VisitorRepository interface {
	Create(ctx context.Context, rec *models.VisitorRecord) error
	GetByID(ctx context.Context, id uint) (*models.VisitorRecord, error)
	// Update writes only the named columns of rec and returns the row as
	// stored afterwards, including columns other writers changed.
	Update(ctx context.Context, rec *models.VisitorRecord, columns []string) (*models.VisitorRecord, error)
	List(ctx context.Context, scope tenancy.VisitorScope, filter VisitorFilter) ([]models.VisitorRecord, error)
}

type visitorRepository struct {
	db *gorm.DB
}

// NewVisitorRepository returns a new VisitorRepository implementation.
func NewVisitorRepository(db *gorm.DB) VisitorRepository {
	return &visitorRepository{db: db}
}

func (r *visitorRepository) Create(ctx context.Context, rec *models.VisitorRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *visitorRepository) GetByID(ctx context.Context, id uint) (*models.VisitorRecord, error) {
	var rec models.VisitorRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, lookupError(err, "Visitor", id)
	}
	return &rec, nil
}

func (r *visitorRepository) Update(ctx context.Context, rec *models.VisitorRecord, columns []string) (*models.VisitorRecord, error) {
	var stored models.VisitorRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(columns) > 0 {
			result := tx.Model(rec).Select(columns).Updates(rec)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return tx.First(&stored, rec.ID).Error
	})
	if err != nil {
		return nil, lookupError(err, "Visitor", rec.ID)
	}
	return &stored, nil
}

func (r *visitorRepository) List(ctx context.Context, scope tenancy.VisitorScope, f VisitorFilter) ([]models.VisitorRecord, error) {
	q := r.db.WithContext(ctx).Model(&models.VisitorRecord{}).Where("society_name = ?", scope.Tenant)
	if scope.FlatNumber != "" {
		q = q.Where("flat_number = ?", scope.FlatNumber)
	}

	if f.Lifecycle != "" {
		q = q.Where("status = ?", f.Lifecycle)
	}
	if f.Permission != "" {
		q = q.Where("permission_status = ?", f.Permission)
	}
	if len(f.PermissionIn) > 0 {
		q = q.Where("permission_status IN ?", f.PermissionIn)
	}
	if len(f.LifecycleNotIn) > 0 {
		q = q.Where("status NOT IN ?", f.LifecycleNotIn)
	}
	if f.ExpectedOn != nil {
		day := f.ExpectedOn.UTC().Truncate(24 * time.Hour)
		q = q.Where("(expected_date IS NULL OR (expected_date >= ? AND expected_date < ?))", day, day.Add(24*time.Hour))
	}

	q = q.Order("created_at DESC").Order("id DESC").Limit(clampLimit(f.Limit))
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.VisitorRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}
