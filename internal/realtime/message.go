// Package realtime pushes order snapshots to connected staff and customers.
package realtime

import (
	"order_engine/internal/models"
	"time"
)

type MessageType string

const (
	NewOrder     MessageType = "new_order"
	OrderUpdated MessageType = "order_updated"
)

type ItemPayload struct {
	ItemID   uint    `json:"item_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type OrderPayload struct {
	OrderID              uint               `json:"order_id"`
	Items                []ItemPayload      `json:"items"`
	TotalPrice           float64            `json:"total_price"`
	Status               models.OrderStatus `json:"status"`
	CustomerName         string             `json:"customer_name"`
	CustomerPhone        string             `json:"customer_phone"`
	PreparationStartTime *time.Time         `json:"preparation_start_time"`
	PreparationEndTime   *time.Time         `json:"preparation_end_time"`
	DeliveryStartTime    *time.Time         `json:"delivery_start_time"`
	DeliveryEndTime      *time.Time         `json:"delivery_end_time"`
	IsDelivery           bool               `json:"is_delivery"`
	CustomerLocation     string             `json:"customer_location"`
	RiderID              *uint              `json:"rider_id"`
}

// Message is the JSON document written to every listening channel.
type Message struct {
	Type  MessageType  `json:"type"`
	Order OrderPayload `json:"order"`
}

// NewMessage builds the push message for order. Line names and prices come from catalog when the
// item is still on the menu and from the stored line otherwise.
func NewMessage(kind MessageType, order *models.Order, catalog map[uint]models.MenuItem) Message {
	items := make([]ItemPayload, 0, len(order.Items))
	for _, line := range order.Items {
		item := ItemPayload{
			ItemID:   line.ItemID,
			Name:     line.Name,
			Quantity: line.Quantity,
			Price:    line.Price.InexactFloat64(),
		}
		if current, ok := catalog[line.ItemID]; ok {
			item.Name = current.Name
			item.Price = current.Price.InexactFloat64()
		}
		items = append(items, item)
	}

	return Message{
		Type: kind,
		Order: OrderPayload{
			OrderID:              order.ID,
			Items:                items,
			TotalPrice:           order.TotalPrice.InexactFloat64(),
			Status:               order.Status,
			CustomerName:         order.CustomerName,
			CustomerPhone:        order.CustomerPhone,
			PreparationStartTime: order.PreparationStartTime,
			PreparationEndTime:   order.PreparationEndTime,
			DeliveryStartTime:    order.DeliveryStartTime,
			DeliveryEndTime:      order.DeliveryEndTime,
			IsDelivery:           order.IsDelivery,
			CustomerLocation:     order.CustomerLocation,
			RiderID:              order.RiderID,
		},
	}
}
