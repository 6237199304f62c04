package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                   uint            `json:"order_id" gorm:"primaryKey"`
	TenantID             string          `json:"tenant_id" gorm:"not null;index"`
	Status               OrderStatus     `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	TotalPrice           decimal.Decimal `json:"total_price" gorm:"type:numeric(12,2);not null"`
	CustomerName         string          `json:"customer_name"`
	CustomerPhone        string          `json:"customer_phone" gorm:"index"`
	IsDelivery           bool            `json:"is_delivery" gorm:"not null;default:false"`
	CustomerLocation     string          `json:"customer_location"`
	RiderID              *uint           `json:"rider_id"`
	PreparationStartTime *time.Time      `json:"preparation_start_time"`
	PreparationEndTime   *time.Time      `json:"preparation_end_time"`
	DeliveryStartTime    *time.Time      `json:"delivery_start_time"`
	DeliveryEndTime      *time.Time      `json:"delivery_end_time"`
	Items                []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderCompleted OrderStatus = "completed"
	OrderEnroute   OrderStatus = "enroute"
	OrderDelivered OrderStatus = "delivered"
	OrderCanceled  OrderStatus = "canceled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPreparing, OrderCompleted, OrderEnroute, OrderDelivered, OrderCanceled:
		return true
	}
	return false
}

// Rank orders the forward lifecycle; canceled sits outside it and ranks -1.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderPending:
		return 0
	case OrderPreparing:
		return 1
	case OrderCompleted:
		return 2
	case OrderEnroute:
		return 3
	case OrderDelivered:
		return 4
	}
	return -1
}

// IsRiderBound reports whether s requires a rider on a delivery order.
func (s OrderStatus) IsRiderBound() bool {
	return s == OrderEnroute || s == OrderDelivered
}

// ItemsTotal sums quantity × price over the order's lines.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ItemQuantities maps menu item id to the quantity this order holds.
func (o *Order) ItemQuantities() map[uint]int {
	out := make(map[uint]int, len(o.Items))
	for _, item := range o.Items {
		out[item.ItemID] += item.Quantity
	}
	return out
}

// Clone returns a deep copy, so snapshots handed to background work cannot alias the caller's order.
func (o *Order) Clone() *Order {
	c := *o
	c.RiderID = cloneUint(o.RiderID)
	c.PreparationStartTime = cloneTime(o.PreparationStartTime)
	c.PreparationEndTime = cloneTime(o.PreparationEndTime)
	c.DeliveryStartTime = cloneTime(o.DeliveryStartTime)
	c.DeliveryEndTime = cloneTime(o.DeliveryEndTime)
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}

func cloneUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
