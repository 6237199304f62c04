package repository

import (
	"context"
	"fmt"
	"order_engine/internal/models"

	"gorm.io/gorm"
)

// OrderHistoryRepository is append-only; entries are never updated or deleted.
type OrderHistoryRepository interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	ListByTenant(ctx context.Context, tenantID string) ([]models.AuditEntry, error)
	ListByOrder(ctx context.Context, tenantID string, orderID uint) ([]models.AuditEntry, error)
}

type orderHistoryRepository struct {
	db *gorm.DB
}

func NewOrderHistoryRepository(db *gorm.DB) OrderHistoryRepository {
	return &orderHistoryRepository{db: db}
}

func (r *orderHistoryRepository) Append(ctx context.Context, entry models.AuditEntry) error {
	row, err := models.NewOrderHistory(entry)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *orderHistoryRepository) ListByTenant(ctx context.Context, tenantID string) ([]models.AuditEntry, error) {
	var rows []models.OrderHistory
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("change_timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return decodeHistory(rows)
}

func (r *orderHistoryRepository) ListByOrder(ctx context.Context, tenantID string, orderID uint) ([]models.AuditEntry, error) {
	var rows []models.OrderHistory
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("change_timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return decodeHistory(rows)
}

func decodeHistory(rows []models.OrderHistory) ([]models.AuditEntry, error) {
	entries := make([]models.AuditEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].Entry()
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", rows[i].ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
