package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is one line of an order. Name and Price are snapshots of the menu item taken when the
// line was last written.
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	OrderID   uint            `json:"order_id" gorm:"not null;uniqueIndex:idx_order_items_order_item"`
	TenantID  string          `json:"tenant_id" gorm:"not null;index"`
	ItemID    uint            `json:"item_id" gorm:"not null;uniqueIndex:idx_order_items_order_item"`
	Name      string          `json:"name" gorm:"not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
