package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditCreated  AuditAction = "created"
	AuditUpdated  AuditAction = "updated"
	AuditCanceled AuditAction = "canceled"
)

// AuditEntry is the typed, in-process form of one order_history row.
type AuditEntry struct {
	ID        string       `json:"history_id"`
	OrderID   uint         `json:"order_id"`
	TenantID  string       `json:"tenant_id"`
	Action    AuditAction  `json:"action"`
	Details   AuditDetails `json:"details"`
	ChangedBy string       `json:"changed_by"`
	Timestamp time.Time    `json:"change_timestamp"`
}

// AuditDetails is implemented by one details type per action.
type AuditDetails interface {
	AuditAction() AuditAction
}

type SnapshotItem struct {
	ItemID   uint            `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderSnapshot captures everything an audit reader needs to reconstruct an order at one point.
type OrderSnapshot struct {
	Items                []SnapshotItem  `json:"items"`
	TotalPrice           decimal.Decimal `json:"total_price"`
	Status               OrderStatus     `json:"status"`
	CustomerName         string          `json:"customer_name"`
	CustomerPhone        string          `json:"customer_phone"`
	IsDelivery           bool            `json:"is_delivery"`
	CustomerLocation     string          `json:"customer_location"`
	RiderID              *uint           `json:"rider_id"`
	PreparationStartTime *time.Time      `json:"preparation_start_time"`
	PreparationEndTime   *time.Time      `json:"preparation_end_time"`
	DeliveryStartTime    *time.Time      `json:"delivery_start_time"`
	DeliveryEndTime      *time.Time      `json:"delivery_end_time"`
}

// StockDelta is a signed stock movement: positive reserved, negative released.
type StockDelta struct {
	ItemID uint `json:"item_id"`
	Delta  int  `json:"delta"`
}

type CreatedDetails struct {
	OrderSnapshot
}

type UpdatedDetails struct {
	OrderSnapshot
	PreviousStatus OrderStatus  `json:"previous_status"`
	StockDeltas    []StockDelta `json:"stock_deltas,omitempty"`
}

type CanceledDetails struct {
	OrderSnapshot
	PreviousStatus OrderStatus  `json:"previous_status"`
	ReleasedStock  []StockDelta `json:"released_stock"`
}

func (CreatedDetails) AuditAction() AuditAction { return AuditCreated }
func (UpdatedDetails) AuditAction() AuditAction { return AuditUpdated }
func (CanceledDetails) AuditAction() AuditAction { return AuditCanceled }

// SnapshotOf copies the audit-relevant fields of o.
func SnapshotOf(o *Order) OrderSnapshot {
	items := make([]SnapshotItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, SnapshotItem{
			ItemID:   item.ItemID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	c := o.Clone()
	return OrderSnapshot{
		Items:                items,
		TotalPrice:           o.TotalPrice,
		Status:               o.Status,
		CustomerName:         o.CustomerName,
		CustomerPhone:        o.CustomerPhone,
		IsDelivery:           o.IsDelivery,
		CustomerLocation:     o.CustomerLocation,
		RiderID:              c.RiderID,
		PreparationStartTime: c.PreparationStartTime,
		PreparationEndTime:   c.PreparationEndTime,
		DeliveryStartTime:    c.DeliveryStartTime,
		DeliveryEndTime:      c.DeliveryEndTime,
	}
}

// OrderHistory is the storage row for AuditEntry. It has no foreign key to orders so that entries
// outlive the orders they describe.
type OrderHistory struct {
	ID              string         `gorm:"primaryKey;type:varchar(36)"`
	OrderID         uint           `gorm:"not null;index"`
	TenantID        string         `gorm:"not null;index"`
	Action          AuditAction    `gorm:"type:varchar(16);not null"`
	Details         datatypes.JSON `gorm:"not null"`
	ChangedBy       string         `gorm:"not null"`
	ChangeTimestamp time.Time      `gorm:"not null;index"`
}

func (OrderHistory) TableName() string { return "order_history" }

// NewOrderHistory serializes entry for storage.
func NewOrderHistory(entry AuditEntry) (*OrderHistory, error) {
	if entry.Details == nil {
		return nil, fmt.Errorf("audit entry for order %d has no details", entry.OrderID)
	}
	if entry.Details.AuditAction() != entry.Action {
		return nil, fmt.Errorf("audit entry action %q does not match details %q", entry.Action, entry.Details.AuditAction())
	}
	raw, err := json.Marshal(entry.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit details: %w", err)
	}
	return &OrderHistory{
		ID:              entry.ID,
		OrderID:         entry.OrderID,
		TenantID:        entry.TenantID,
		Action:          entry.Action,
		Details:         datatypes.JSON(raw),
		ChangedBy:       entry.ChangedBy,
		ChangeTimestamp: entry.Timestamp,
	}, nil
}

// Entry decodes the row back into its typed form.
func (h *OrderHistory) Entry() (AuditEntry, error) {
	var details AuditDetails
	switch h.Action {
	case AuditCreated:
		var d CreatedDetails
		if err := json.Unmarshal(h.Details, &d); err != nil {
			return AuditEntry{}, fmt.Errorf("failed to decode created details: %w", err)
		}
		details = d
	case AuditUpdated:
		var d UpdatedDetails
		if err := json.Unmarshal(h.Details, &d); err != nil {
			return AuditEntry{}, fmt.Errorf("failed to decode updated details: %w", err)
		}
		details = d
	case AuditCanceled:
		var d CanceledDetails
		if err := json.Unmarshal(h.Details, &d); err != nil {
			return AuditEntry{}, fmt.Errorf("failed to decode canceled details: %w", err)
		}
		details = d
	default:
		return AuditEntry{}, fmt.Errorf("unknown audit action %q", h.Action)
	}
	return AuditEntry{
		ID:        h.ID,
		OrderID:   h.OrderID,
		TenantID:  h.TenantID,
		Action:    h.Action,
		Details:   details,
		ChangedBy: h.ChangedBy,
		Timestamp: h.ChangeTimestamp,
	}, nil
}
