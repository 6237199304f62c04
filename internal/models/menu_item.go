package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID                uint            `json:"item_id" gorm:"primaryKey"`
	TenantID          string          `json:"tenant_id" gorm:"not null;index"`
	Name              string          `json:"name" gorm:"not null"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	StockQuantity     int             `json:"stock_quantity" gorm:"not null;default:0;check:stock_quantity >= 0"`
	LowStockThreshold int             `json:"low_stock_threshold" gorm:"not null;default:5"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsLowStock reports whether the counter sits at or under the item's alert threshold.
func (m MenuItem) IsLowStock() bool {
	return m.StockQuantity <= m.LowStockThreshold
}
