package repository

import (
	"context"
	"order_engine/internal/models"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderFilter narrows and sorts ListOrders results.
type OrderFilter struct {
	Status    models.OrderStatus
	Search    string
	SortBy    string
	SortOrder string
}

// OrderColumn maps the public sort key to a column, defaulting to created_at.
func (f OrderFilter) OrderColumn() string {
	switch f.SortBy {
	case "order_id":
		return "id"
	case "total_price":
		return "total_price"
	default:
		return "created_at"
	}
}

// Descending is the default; only an explicit ASC flips it.
func (f OrderFilter) Descending() bool {
	return !strings.EqualFold(f.SortOrder, "ASC")
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	// GetByID loads the order with its items.
	GetByID(ctx context.Context, tenantID string, id uint) (*models.Order, error)
	// LockByID loads the order with its items and holds a row lock on the order until the
	// surrounding transaction ends.
	LockByID(ctx context.Context, tenantID string, id uint) (*models.Order, error)
	GetByIDAndPhone(ctx context.Context, tenantID string, id uint, phone string) (*models.Order, error)
	// Update writes the order's scalar columns; items are maintained through OrderItemRepository.
	Update(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, tenantID string, id uint) error
	List(ctx context.Context, tenantID string, filter OrderFilter) ([]models.Order, error)
	// FindEnrouteByRider returns the rider's enroute order other than excludeID, or ErrNotFound.
	FindEnrouteByRider(ctx context.Context, tenantID string, riderID, excludeID uint) (*models.Order, error)
	// Totals counts the tenant's live orders that have lines and sums their line totals.
	Totals(ctx context.Context, tenantID string) (OrderTotals, error)
}

type OrderTotals struct {
	Orders  int64
	Revenue decimal.Decimal
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, tenantID string, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByItemID).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *orderRepository) LockByID(ctx context.Context, tenantID string, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, id).
		Order("item_id").
		Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByIDAndPhone(ctx context.Context, tenantID string, id uint, phone string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByItemID).
		Where("tenant_id = ? AND id = ? AND customer_phone = ?", tenantID, id, phone).
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *orderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error
}

func (r *orderRepository) Delete(ctx context.Context, tenantID string, id uint) error {
	result := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.Order{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, tenantID string, filter OrderFilter) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Preload("Items", orderItemsByItemID).Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("(customer_name LIKE ? OR customer_phone LIKE ?)", like, like)
	}
	query = query.Order(clause.OrderByColumn{
		Column: clause.Column{Name: filter.OrderColumn()},
		Desc:   filter.Descending(),
	})

	var orders []models.Order
	err := query.Find(&orders).Error
	return orders, err
}

func (r *orderRepository) FindEnrouteByRider(ctx context.Context, tenantID string, riderID, excludeID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND rider_id = ? AND status = ? AND id <> ?", tenantID, riderID, models.OrderEnroute, excludeID).
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func orderItemsByItemID(db *gorm.DB) *gorm.DB {
	return db.Order("item_id")
}

func (r *orderRepository) Totals(ctx context.Context, tenantID string) (OrderTotals, error) {
	var totals OrderTotals
	err := r.db.WithContext(ctx).
		Table("orders AS o").
		Select("COUNT(DISTINCT o.id) AS orders, COALESCE(SUM(oi.quantity * oi.price), 0) AS revenue").
		Joins("JOIN order_items AS oi ON oi.order_id = o.id").
		Where("o.tenant_id = ? AND o.status <> ?", tenantID, models.OrderCanceled).
		Scan(&totals).Error
	return totals, err
}
