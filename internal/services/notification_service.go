package services

import (
	"context"
	"encoding/json"
	"fmt"
	"order_engine/internal/models"
	"order_engine/internal/realtime"
	"order_engine/internal/repository"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier announces committed order changes to live listeners.
type Notifier interface {
	// Broadcast returns immediately; delivery happens in the background and never reports back.
	Broadcast(tenantID string, order *models.Order, kind realtime.MessageType)
}

type NotificationService struct {
	menuItems repository.MenuItemRepository
	publisher realtime.Publisher
	timeout   time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewNotificationService(menuItems repository.MenuItemRepository, publisher realtime.Publisher, timeout time.Duration, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		menuItems: menuItems,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

func (n *NotificationService) Broadcast(tenantID string, order *models.Order, kind realtime.MessageType) {
	snapshot := order.Clone()
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.Notify(ctx, tenantID, snapshot, kind); err != nil {
			n.logger.Warn("order broadcast dropped",
				zap.String("tenant_id", tenantID),
				zap.Uint("order_id", snapshot.ID),
				zap.String("type", string(kind)),
				zap.Error(err))
		}
	}()
}

// Notify builds the message for order with current catalog names and prices and publishes it.
func (n *NotificationService) Notify(ctx context.Context, tenantID string, order *models.Order, kind realtime.MessageType) error {
	ids := make([]uint, 0, len(order.Items))
	for _, line := range order.Items {
		ids = append(ids, line.ItemID)
	}
	catalog, err := n.menuItems.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve menu items: %w", err)
	}

	payload, err := json.Marshal(realtime.NewMessage(kind, order, catalog))
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return n.publisher.Publish(ctx, realtime.Envelope{TenantID: tenantID, OrderID: order.ID, Payload: payload})
}

// Wait blocks until every broadcast started so far has finished.
func (n *NotificationService) Wait() {
	n.wg.Wait()
}
