package services

import (
	"context"
	"errors"
	"math"
	"order_engine/internal/models"
	"order_engine/internal/realtime"
	"order_engine/internal/repository"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ItemInput struct {
	ItemID   uint `json:"item_id"`
	Quantity int  `json:"quantity"`
}

type CreateOrderInput struct {
	Items            []ItemInput        `json:"items"`
	Status           models.OrderStatus `json:"status"`
	CustomerName     string             `json:"customer_name"`
	CustomerPhone    string             `json:"customer_phone"`
	IsDelivery       bool               `json:"is_delivery"`
	CustomerLocation string             `json:"customer_location"`
	RiderID          *uint              `json:"rider_id"`
}

// UpdateOrderInput replaces the order's item list. Nil fields and an empty status keep the
// current value.
type UpdateOrderInput struct {
	Items            []ItemInput        `json:"items"`
	Status           models.OrderStatus `json:"status"`
	CustomerName     *string            `json:"customer_name"`
	CustomerPhone    *string            `json:"customer_phone"`
	IsDelivery       *bool              `json:"is_delivery"`
	CustomerLocation *string            `json:"customer_location"`
	RiderID          *uint              `json:"rider_id"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, tenantID string, actor Actor, input CreateOrderInput) (*models.Order, error)
	UpdateOrder(ctx context.Context, tenantID string, orderID uint, actor Actor, input UpdateOrderInput) (*models.Order, error)
	// CancelOrder releases the order's stock, records it in history and removes it. The returned
	// order is the final snapshot with status canceled.
	CancelOrder(ctx context.Context, tenantID string, orderID uint, actor Actor) (*models.Order, error)
	GetOrder(ctx context.Context, tenantID string, orderID uint) (*models.Order, error)
	// GetOrderStatus is the customer lookup: the phone number must match the order.
	GetOrderStatus(ctx context.Context, tenantID string, orderID uint, phone string) (*models.Order, error)
	ListOrders(ctx context.Context, tenantID string, filter repository.OrderFilter) ([]models.Order, error)
	// ListHistory returns the tenant's audit trail, newest first, or one order's trail oldest first
	// when orderID is set.
	ListHistory(ctx context.Context, tenantID string, orderID uint) ([]models.AuditEntry, error)
	// Summary reports order count, revenue and the items running low.
	Summary(ctx context.Context, tenantID string) (*Summary, error)
}

type Summary struct {
	TotalOrders   int64             `json:"total_orders"`
	TotalRevenue  decimal.Decimal   `json:"total_revenue"`
	LowStockItems []models.MenuItem `json:"low_stock_items"`
}

type orderService struct {
	store    repository.Store
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(store repository.Store, notifier Notifier, logger *zap.Logger) OrderService {
	return &orderService{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// staffMayMove lets staff hold an order's status or move it forward. Entering a rider-bound status
// may only come from the step right before it.
func staffMayMove(from, to models.OrderStatus) bool {
	if from.Rank() < 0 || to.Rank() < from.Rank() {
		return false
	}
	return !to.IsRiderBound() || to.Rank()-from.Rank() <= 1
}

func (s *orderService) CreateOrder(ctx context.Context, tenantID string, actor Actor, input CreateOrderInput) (*models.Order, error) {
	if !actor.CanCreateOrders() {
		return nil, forbiddenError(ReasonActionNotPermitted, "Not allowed to create orders")
	}
	quantities, err := normalizeItems(input.Items)
	if err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = models.OrderPending
	}
	if _, ok := actor.(Customer); ok {
		if strings.TrimSpace(input.CustomerName) == "" || strings.TrimSpace(input.CustomerPhone) == "" {
			return nil, validationError(ReasonCustomerRequired, "Customer name and phone are required")
		}
		if status != models.OrderPending || input.RiderID != nil {
			return nil, forbiddenError(ReasonActionNotPermitted, "Customers may only place pending orders")
		}
	}
	if !status.Valid() || status == models.OrderCanceled {
		return nil, validationError(ReasonInvalidStatus, "Invalid status %q", status)
	}
	if input.IsDelivery && strings.TrimSpace(input.CustomerLocation) == "" {
		return nil, validationError(ReasonLocationRequired, "Delivery orders require a customer location")
	}
	if status.IsRiderBound() {
		if !input.IsDelivery {
			return nil, validationError(ReasonInvalidTransition, "Only delivery orders can be %s", status)
		}
		if input.RiderID == nil {
			return nil, validationError(ReasonRiderRequired, "A rider is required for %s orders", status)
		}
	}
	if input.RiderID != nil && !input.IsDelivery {
		return nil, validationError(ReasonInvalidInput, "Riders can only be assigned to delivery orders")
	}
	if err := requireTenant(ctx, s.store.Repositories(), tenantID); err != nil {
		return nil, err
	}

	order := &models.Order{
		TenantID:         tenantID,
		Status:           status,
		CustomerName:     strings.TrimSpace(input.CustomerName),
		CustomerPhone:    strings.TrimSpace(input.CustomerPhone),
		IsDelivery:       input.IsDelivery,
		CustomerLocation: strings.TrimSpace(input.CustomerLocation),
	}
	stampEntry(order, status, s.now())

	err = s.store.Transaction(ctx, func(r *repository.Repositories) error {
		catalog, err := r.MenuItems.GetByIDs(ctx, tenantID, itemIDs(quantities))
		if err != nil {
			return internalError("failed to load menu items", err)
		}
		lines, err := buildLines(tenantID, quantities, catalog)
		if err != nil {
			return err
		}
		deltas := StockDeltas(nil, quantities)
		if err := checkAvailability(deltas, catalog); err != nil {
			return err
		}
		if input.RiderID != nil {
			riderID, err := NewRiderPolicy(r.Users, r.Orders).Assign(ctx, tenantID, order, *input.RiderID, actor, status)
			if err != nil {
				return err
			}
			order.RiderID = &riderID
		}

		if err := NewInventoryLedger(r.MenuItems, s.logger).ApplyDeltas(ctx, tenantID, deltas); err != nil {
			return err
		}
		order.Items = lines
		order.TotalPrice = order.ItemsTotal()
		if err := r.Orders.Create(ctx, order); err != nil {
			return internalError("failed to create order", err)
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
			if err := r.OrderItems.Create(ctx, &order.Items[i]); err != nil {
				return internalError("failed to create order item", err)
			}
		}
		return NewAuditLog(r.History, s.now).Write(ctx, tenantID, order.ID, actor.ChangedBy(),
			models.CreatedDetails{OrderSnapshot: models.SnapshotOf(order)})
	})
	if err != nil {
		return nil, s.rejected("create", tenantID, 0, err)
	}

	s.logger.Info("order created",
		zap.String("tenant_id", tenantID),
		zap.Uint("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("changed_by", actor.ChangedBy()))
	s.notifier.Broadcast(tenantID, order, realtime.NewOrder)
	return order, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, tenantID string, orderID uint, actor Actor, input UpdateOrderInput) (*models.Order, error) {
	if input.Status == models.OrderCanceled {
		return s.CancelOrder(ctx, tenantID, orderID, actor)
	}
	rider, isRider := actor.(Rider)
	if !actor.CanEditOrders() && !isRider {
		return nil, forbiddenError(ReasonActionNotPermitted, "Not allowed to update orders")
	}

	var quantities map[uint]int
	if !isRider || len(input.Items) > 0 {
		var err error
		if quantities, err = normalizeItems(input.Items); err != nil {
			return nil, err
		}
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, validationError(ReasonInvalidStatus, "Invalid status %q", input.Status)
	}
	if isRider {
		if input.Status == "" {
			return nil, validationError(ReasonInvalidStatus, "A status is required")
		}
		if input.RiderID != nil && *input.RiderID != rider.UserID {
			return nil, forbiddenError(ReasonRiderNotAuthorized, "Riders can only assign themselves")
		}
	}
	if err := requireTenant(ctx, s.store.Repositories(), tenantID); err != nil {
		return nil, err
	}

	var previous models.OrderStatus
	var updated *models.Order
	err := s.store.Transaction(ctx, func(r *repository.Repositories) error {
		current, err := r.Orders.LockByID(ctx, tenantID, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError(ReasonOrderNotFound, "Order not found")
		}
		if err != nil {
			return internalError("failed to load order", err)
		}
		if current.Status == models.OrderDelivered {
			return conflictError(ReasonOrderDelivered, "Delivered orders cannot be modified")
		}

		policy := NewRiderPolicy(r.Users, r.Orders)
		next := current.Clone()
		target := input.Status
		if target == "" {
			target = current.Status
		}

		if isRider {
			if quantities != nil && !sameQuantities(quantities, current.ItemQuantities()) {
				return forbiddenError(ReasonActionNotPermitted, "Riders cannot change order items")
			}
			quantities = current.ItemQuantities()
			riderID, err := policy.Assign(ctx, tenantID, current, rider.UserID, actor, target)
			if err != nil {
				return err
			}
			next.RiderID = &riderID
		} else {
			if !staffMayMove(current.Status, target) {
				return validationError(ReasonInvalidTransition, "Cannot move order from %s to %s", current.Status, target)
			}
			applyCustomerFields(next, input)
			if next.IsDelivery && next.CustomerLocation == "" {
				return validationError(ReasonLocationRequired, "Delivery orders require a customer location")
			}
			if target.IsRiderBound() && !next.IsDelivery {
				return validationError(ReasonInvalidTransition, "Only delivery orders can be %s", target)
			}
			if !next.IsDelivery {
				if input.RiderID != nil {
					return validationError(ReasonInvalidInput, "Riders can only be assigned to delivery orders")
				}
				next.RiderID = nil
			}

			switch {
			case input.RiderID != nil:
				riderID, err := policy.Assign(ctx, tenantID, current, *input.RiderID, actor, target)
				if err != nil {
					return err
				}
				next.RiderID = &riderID
			case target.IsRiderBound() && next.RiderID == nil:
				return validationError(ReasonRiderRequired, "A rider is required for %s orders", target)
			case target == models.OrderEnroute:
				// The pre-bound rider may have gone out with another order since.
				if _, err := policy.Assign(ctx, tenantID, current, *next.RiderID, actor, target); err != nil {
					return err
				}
			}
		}

		catalog, err := r.MenuItems.GetByIDs(ctx, tenantID, itemIDs(quantities))
		if err != nil {
			return internalError("failed to load menu items", err)
		}
		lines, err := buildLines(tenantID, quantities, catalog)
		if err != nil {
			return err
		}
		deltas := StockDeltas(current.ItemQuantities(), quantities)
		if err := checkAvailability(deltas, catalog); err != nil {
			return err
		}

		if err := NewInventoryLedger(r.MenuItems, s.logger).ApplyDeltas(ctx, tenantID, deltas); err != nil {
			return err
		}
		if err := replaceLines(ctx, r.OrderItems, current, lines); err != nil {
			return err
		}
		next.Items = lines
		next.TotalPrice = next.ItemsTotal()
		if target != current.Status {
			next.Status = target
			stampEntry(next, target, s.now())
		}
		if err := r.Orders.Update(ctx, next); err != nil {
			return internalError("failed to update order", err)
		}
		if err := NewAuditLog(r.History, s.now).Write(ctx, tenantID, orderID, actor.ChangedBy(), models.UpdatedDetails{
			OrderSnapshot:  models.SnapshotOf(next),
			PreviousStatus: current.Status,
			StockDeltas:    deltas,
		}); err != nil {
			return err
		}
		previous = current.Status
		updated = next
		return nil
	})
	if err != nil {
		return nil, s.rejected("update", tenantID, orderID, err)
	}

	s.logger.Info("order updated",
		zap.String("tenant_id", tenantID),
		zap.Uint("order_id", orderID),
		zap.String("from", string(previous)),
		zap.String("to", string(updated.Status)),
		zap.String("changed_by", actor.ChangedBy()))
	s.notifier.Broadcast(tenantID, updated, realtime.OrderUpdated)
	return updated, nil
}

func (s *orderService) CancelOrder(ctx context.Context, tenantID string, orderID uint, actor Actor) (*models.Order, error) {
	if !actor.CanCancelOrders() {
		return nil, forbiddenError(ReasonActionNotPermitted, "Not allowed to cancel orders")
	}
	if err := requireTenant(ctx, s.store.Repositories(), tenantID); err != nil {
		return nil, err
	}

	var canceled *models.Order
	err := s.store.Transaction(ctx, func(r *repository.Repositories) error {
		current, err := r.Orders.LockByID(ctx, tenantID, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError(ReasonOrderNotFound, "Order not found")
		}
		if err != nil {
			return internalError("failed to load order", err)
		}
		if current.Status == models.OrderDelivered {
			return conflictError(ReasonOrderDelivered, "Delivered orders cannot be canceled")
		}

		released := StockDeltas(current.ItemQuantities(), nil)
		if err := NewInventoryLedger(r.MenuItems, s.logger).ApplyDeltas(ctx, tenantID, released); err != nil {
			return err
		}

		canceled = current.Clone()
		canceled.Status = models.OrderCanceled
		if err := NewAuditLog(r.History, s.now).Write(ctx, tenantID, orderID, actor.ChangedBy(), models.CanceledDetails{
			OrderSnapshot:  models.SnapshotOf(canceled),
			PreviousStatus: current.Status,
			ReleasedStock:  released,
		}); err != nil {
			return err
		}

		if err := r.OrderItems.DeleteByOrderID(ctx, tenantID, orderID); err != nil {
			return internalError("failed to delete order items", err)
		}
		if err := r.Orders.Delete(ctx, tenantID, orderID); err != nil {
			return internalError("failed to delete order", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.rejected("cancel", tenantID, orderID, err)
	}

	s.logger.Info("order canceled",
		zap.String("tenant_id", tenantID),
		zap.Uint("order_id", orderID),
		zap.String("changed_by", actor.ChangedBy()))
	s.notifier.Broadcast(tenantID, canceled, realtime.OrderUpdated)
	return canceled, nil
}

func (s *orderService) GetOrder(ctx context.Context, tenantID string, orderID uint) (*models.Order, error) {
	r := s.store.Repositories()
	if err := requireTenant(ctx, r, tenantID); err != nil {
		return nil, err
	}
	order, err := r.Orders.GetByID(ctx, tenantID, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError(ReasonOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, internalError("failed to load order", err)
	}
	return order, nil
}

func (s *orderService) GetOrderStatus(ctx context.Context, tenantID string, orderID uint, phone string) (*models.Order, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, validationError(ReasonInvalidInput, "Phone number is required")
	}
	r := s.store.Repositories()
	if err := requireTenant(ctx, r, tenantID); err != nil {
		return nil, err
	}
	order, err := r.Orders.GetByIDAndPhone(ctx, tenantID, orderID, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError(ReasonOrderNotFound, "Order not found or phone number does not match")
	}
	if err != nil {
		return nil, internalError("failed to load order", err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, tenantID string, filter repository.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationError(ReasonInvalidStatus, "Invalid status %q", filter.Status)
	}
	r := s.store.Repositories()
	if err := requireTenant(ctx, r, tenantID); err != nil {
		return nil, err
	}
	orders, err := r.Orders.List(ctx, tenantID, filter)
	if err != nil {
		return nil, internalError("failed to list orders", err)
	}
	return orders, nil
}

func (s *orderService) ListHistory(ctx context.Context, tenantID string, orderID uint) ([]models.AuditEntry, error) {
	r := s.store.Repositories()
	if err := requireTenant(ctx, r, tenantID); err != nil {
		return nil, err
	}
	var (
		entries []models.AuditEntry
		err     error
	)
	if orderID == 0 {
		entries, err = r.History.ListByTenant(ctx, tenantID)
	} else {
		entries, err = r.History.ListByOrder(ctx, tenantID, orderID)
	}
	if err != nil {
		return nil, internalError("failed to list order history", err)
	}
	return entries, nil
}

func (s *orderService) Summary(ctx context.Context, tenantID string) (*Summary, error) {
	r := s.store.Repositories()
	if err := requireTenant(ctx, r, tenantID); err != nil {
		return nil, err
	}
	totals, err := r.Orders.Totals(ctx, tenantID)
	if err != nil {
		return nil, internalError("failed to total orders", err)
	}
	low, err := r.MenuItems.ListLowStock(ctx, tenantID)
	if err != nil {
		return nil, internalError("failed to list low stock items", err)
	}
	if low == nil {
		low = []models.MenuItem{}
	}
	return &Summary{TotalOrders: totals.Orders, TotalRevenue: totals.Revenue, LowStockItems: low}, nil
}

// rejected logs a failed mutation and normalizes the error.
func (s *orderService) rejected(op, tenantID string, orderID uint, err error) error {
	svcErr := AsError(err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("tenant_id", tenantID),
		zap.Uint("order_id", orderID),
		zap.String("kind", svcErr.Kind.String()),
		zap.String("reason", svcErr.Reason),
	}
	if svcErr.Kind == KindInternal {
		s.logger.Error("order mutation failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("order mutation rejected", append(fields, zap.String("message", svcErr.Message))...)
	}
	return svcErr
}

// MaxLineQuantity caps one order line, repeated ids merged, so quantities and stock counters stay
// within a postgres integer.
const MaxLineQuantity = math.MaxInt32

// normalizeItems validates the requested lines and merges repeated item ids.
func normalizeItems(items []ItemInput) (map[uint]int, error) {
	if len(items) == 0 {
		return nil, validationError(ReasonEmptyItems, "Order must contain at least one item")
	}
	quantities := make(map[uint]int, len(items))
	for _, item := range items {
		if item.ItemID == 0 {
			return nil, validationError(ReasonInvalidItem, "Every item needs an item_id")
		}
		if item.Quantity <= 0 || item.Quantity > MaxLineQuantity-quantities[item.ItemID] {
			return nil, validationError(ReasonInvalidQuantity, "Invalid quantity %d for item %d", item.Quantity, item.ItemID)
		}
		quantities[item.ItemID] += item.Quantity
	}
	return quantities, nil
}

func itemIDs(quantities map[uint]int) []uint {
	ids := make([]uint, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// buildLines prices every line from the catalog, ignoring anything the caller said about names or
// prices.
func buildLines(tenantID string, quantities map[uint]int, catalog map[uint]models.MenuItem) ([]models.OrderItem, error) {
	lines := make([]models.OrderItem, 0, len(quantities))
	for _, id := range itemIDs(quantities) {
		item, ok := catalog[id]
		if !ok {
			return nil, notFoundError(ReasonMenuItemNotFound, "Menu item with ID %d not found", id)
		}
		lines = append(lines, models.OrderItem{
			TenantID: tenantID,
			ItemID:   id,
			Name:     item.Name,
			Quantity: quantities[id],
			Price:    item.Price,
		})
	}
	return lines, nil
}

// replaceLines rewrites the stored lines of current to match lines.
func replaceLines(ctx context.Context, repo repository.OrderItemRepository, current *models.Order, lines []models.OrderItem) error {
	wanted := make(map[uint]bool, len(lines))
	for _, line := range lines {
		wanted[line.ItemID] = true
	}
	existing := make(map[uint]bool, len(current.Items))
	for _, line := range current.Items {
		existing[line.ItemID] = true
		if !wanted[line.ItemID] {
			if err := repo.Delete(ctx, current.TenantID, current.ID, line.ItemID); err != nil {
				return internalError("failed to remove order item", err)
			}
		}
	}
	for i := range lines {
		lines[i].OrderID = current.ID
		var err error
		if existing[lines[i].ItemID] {
			err = repo.Update(ctx, &lines[i])
		} else {
			err = repo.Create(ctx, &lines[i])
		}
		if err != nil {
			return internalError("failed to write order item", err)
		}
	}
	return nil
}

func applyCustomerFields(o *models.Order, input UpdateOrderInput) {
	if input.CustomerName != nil {
		o.CustomerName = strings.TrimSpace(*input.CustomerName)
	}
	if input.CustomerPhone != nil {
		o.CustomerPhone = strings.TrimSpace(*input.CustomerPhone)
	}
	if input.IsDelivery != nil {
		o.IsDelivery = *input.IsDelivery
	}
	if input.CustomerLocation != nil {
		o.CustomerLocation = strings.TrimSpace(*input.CustomerLocation)
	}
}

// stampEntry records the time status was first entered. Timestamps already set are kept.
func stampEntry(o *models.Order, status models.OrderStatus, now time.Time) {
	set := func(field **time.Time) {
		if *field == nil {
			t := now.UTC()
			*field = &t
		}
	}
	switch status {
	case models.OrderPreparing:
		set(&o.PreparationStartTime)
	case models.OrderCompleted:
		set(&o.PreparationEndTime)
	case models.OrderEnroute:
		set(&o.DeliveryStartTime)
	case models.OrderDelivered:
		set(&o.DeliveryEndTime)
	}
}

func sameQuantities(a, b map[uint]int) bool {
	if len(a) != len(b) {
		return false
	}
	for id, qty := range a {
		if b[id] != qty {
			return false
		}
	}
	return true
}
