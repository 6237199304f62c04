package repository

import (
	"context"
	"order_engine/internal/models"

	"gorm.io/gorm"
)

type OrderItemRepository interface {
	Create(ctx context.Context, orderItem *models.OrderItem) error
	Update(ctx context.Context, orderItem *models.OrderItem) error
	// Delete removes the line for menu item itemID from the order.
	Delete(ctx context.Context, tenantID string, orderID, itemID uint) error
	DeleteByOrderID(ctx context.Context, tenantID string, orderID uint) error
}

type orderItemRepository struct {
	db *gorm.DB
}

func NewOrderItemRepository(db *gorm.DB) OrderItemRepository {
	return &orderItemRepository{db: db}
}

func (r *orderItemRepository) Create(ctx context.Context, orderItem *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(orderItem).Error
}

func (r *orderItemRepository) Update(ctx context.Context, orderItem *models.OrderItem) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("tenant_id = ? AND order_id = ? AND item_id = ?", orderItem.TenantID, orderItem.OrderID, orderItem.ItemID).
		Updates(map[string]interface{}{
			"quantity": orderItem.Quantity,
			"price":    orderItem.Price,
			"name":     orderItem.Name,
		}).Error
}

func (r *orderItemRepository) Delete(ctx context.Context, tenantID string, orderID, itemID uint) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND item_id = ?", tenantID, orderID, itemID).
		Delete(&models.OrderItem{}).Error
}

func (r *orderItemRepository) DeleteByOrderID(ctx context.Context, tenantID string, orderID uint) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Delete(&models.OrderItem{}).Error
}
