package repository

import (
	"context"
	"order_engine/internal/models"

	"gorm.io/gorm"
)

type MenuItemRepository interface {
	Create(ctx context.Context, item *models.MenuItem) error
	GetByID(ctx context.Context, tenantID string, id uint) (*models.MenuItem, error)
	// GetByIDs returns the tenant's items keyed by id; ids with no row are simply absent.
	GetByIDs(ctx context.Context, tenantID string, ids []uint) (map[uint]models.MenuItem, error)
	// DecrementStock subtracts qty only if the counter stays non-negative, as one conditional
	// statement. It reports false when no row qualified.
	DecrementStock(ctx context.Context, tenantID string, id uint, qty int) (bool, error)
	// IncrementStock adds qty and reports false when the item does not exist.
	IncrementStock(ctx context.Context, tenantID string, id uint, qty int) (bool, error)
	ListLowStock(ctx context.Context, tenantID string) ([]models.MenuItem, error)
}

type menuItemRepository struct {
	db *gorm.DB
}

func NewMenuItemRepository(db *gorm.DB) MenuItemRepository {
	return &menuItemRepository{db: db}
}

func (r *menuItemRepository) Create(ctx context.Context, item *models.MenuItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *menuItemRepository) GetByID(ctx context.Context, tenantID string, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&item).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *menuItemRepository) GetByIDs(ctx context.Context, tenantID string, ids []uint) (map[uint]models.MenuItem, error) {
	out := make(map[uint]models.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.MenuItem
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func (r *menuItemRepository) DecrementStock(ctx context.Context, tenantID string, id uint, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MenuItem{}).
		Where("tenant_id = ? AND id = ? AND stock_quantity >= ?", tenantID, id, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *menuItemRepository) IncrementStock(ctx context.Context, tenantID string, id uint, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MenuItem{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *menuItemRepository) ListLowStock(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND stock_quantity <= low_stock_threshold", tenantID).
		Order("stock_quantity, id").
		Find(&items).Error
	return items, err
}
