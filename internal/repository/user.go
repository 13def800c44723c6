package repository

import (
	"context"
	"errors"

	"gatehouse/internal/cache"
	"gatehouse/internal/models"

	"gorm.io/gorm"
)

// UserRepository reads the principal records the engine authorizes against.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// FindResident returns the resident of a flat, or nil when the flat has none.
	FindResident(ctx context.Context, society, flat string) (*models.User, error)
	ListBySociety(ctx context.Context, society string, role models.Role) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return lookupError(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindResident(ctx context.Context, society, flat string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("society_name = ? AND flat_number = ? AND user_type = ?", society, flat, models.RoleResident).
		Order("id ASC").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) ListBySociety(ctx context.Context, society string, role models.Role) ([]models.User, error) {
	q := r.db.WithContext(ctx).Where("society_name = ?", society)
	if role != "" {
		q = q.Where("user_type = ?", role)
	}
	var users []models.User
	if err := q.Order("flat_number ASC, id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}
