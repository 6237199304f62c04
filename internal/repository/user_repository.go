package repository

import (
	"context"
	"order_engine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, tenantID string, id uint) (*models.User, error)
	// LockByID reads the user with a row lock held until the surrounding transaction ends.
	LockByID(ctx context.Context, tenantID string, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, tenantID, username string) (*models.User, error)
	ListByRole(ctx context.Context, tenantID string, role models.UserRole) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, tenantID string, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) LockByID(ctx context.Context, tenantID string, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, tenantID, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND username = ?", tenantID, username).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, tenantID string, role models.UserRole) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND role = ?", tenantID, role).Order("id").Find(&users).Error
	return users, err
}
