package services

import (
	"context"
	"errors"
	"order_engine/internal/models"
	"order_engine/internal/repository"
	"sort"

	"go.uber.org/zap"
)

// InventoryLedger moves per-item stock counters. It is bound to the repositories of one unit of
// work, so every movement it makes commits or rolls back together with the order change that
// caused it.
type InventoryLedger struct {
	items  repository.MenuItemRepository
	logger *zap.Logger
}

func NewInventoryLedger(items repository.MenuItemRepository, logger *zap.Logger) *InventoryLedger {
	return &InventoryLedger{items: items, logger: logger}
}

// Reserve takes qty units of itemID out of stock, or fails without changing anything.
func (l *InventoryLedger) Reserve(ctx context.Context, tenantID string, itemID uint, qty int) error {
	if qty <= 0 {
		return validationError(ReasonInvalidQuantity, "Invalid quantity %d for item %d", qty, itemID)
	}
	ok, err := l.items.DecrementStock(ctx, tenantID, itemID, qty)
	if err != nil {
		return internalError("failed to reserve stock", err)
	}

	item, err := l.items.GetByID(ctx, tenantID, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundError(ReasonMenuItemNotFound, "Menu item with ID %d not found", itemID)
	}
	if err != nil {
		return internalError("failed to read stock", err)
	}
	if !ok {
		return conflictError(ReasonInsufficientStock, "Insufficient stock for %s. Available: %d", item.Name, item.StockQuantity)
	}
	if item.IsLowStock() {
		l.logger.Warn("menu item stock is low",
			zap.String("tenant_id", tenantID),
			zap.Uint("item_id", itemID),
			zap.String("name", item.Name),
			zap.Int("stock_quantity", item.StockQuantity))
	}
	return nil
}

// Release puts qty units of itemID back into stock.
func (l *InventoryLedger) Release(ctx context.Context, tenantID string, itemID uint, qty int) error {
	if qty <= 0 {
		return validationError(ReasonInvalidQuantity, "Invalid quantity %d for item %d", qty, itemID)
	}
	ok, err := l.items.IncrementStock(ctx, tenantID, itemID, qty)
	if err != nil {
		return internalError("failed to release stock", err)
	}
	if !ok {
		return notFoundError(ReasonMenuItemNotFound, "Menu item with ID %d not found", itemID)
	}
	return nil
}

// Restock adds delivered goods to an item's counter.
func (l *InventoryLedger) Restock(ctx context.Context, tenantID string, itemID uint, qty int) error {
	if qty <= 0 || qty > MaxLineQuantity {
		return validationError(ReasonInvalidQuantity, "Restock quantity must be between 1 and %d", MaxLineQuantity)
	}
	return l.Release(ctx, tenantID, itemID, qty)
}

// ApplyDeltas reserves positive deltas and releases negative ones, in ascending item id order so
// that concurrent units of work lock stock rows in the same sequence.
func (l *InventoryLedger) ApplyDeltas(ctx context.Context, tenantID string, deltas []models.StockDelta) error {
	sorted := append([]models.StockDelta(nil), deltas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })

	for _, d := range sorted {
		var err error
		switch {
		case d.Delta > 0:
			err = l.Reserve(ctx, tenantID, d.ItemID, d.Delta)
		case d.Delta < 0:
			err = l.Release(ctx, tenantID, d.ItemID, -d.Delta)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// StockDeltas compares two item-to-quantity maps and returns the non-zero differences sorted by
// item id. An item missing from a map counts as quantity zero.
func StockDeltas(before, after map[uint]int) []models.StockDelta {
	seen := make(map[uint]struct{}, len(before)+len(after))
	for id := range before {
		seen[id] = struct{}{}
	}
	for id := range after {
		seen[id] = struct{}{}
	}

	var deltas []models.StockDelta
	for id := range seen {
		if d := after[id] - before[id]; d != 0 {
			deltas = append(deltas, models.StockDelta{ItemID: id, Delta: d})
		}
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].ItemID < deltas[j].ItemID })
	return deltas
}

// checkAvailability rejects the first positive delta the catalog snapshot cannot cover. It runs
// before any counter moves so a doomed request leaves the ledger untouched.
func checkAvailability(deltas []models.StockDelta, catalog map[uint]models.MenuItem) error {
	for _, d := range deltas {
		if d.Delta <= 0 {
			continue
		}
		item, ok := catalog[d.ItemID]
		if !ok {
			return notFoundError(ReasonMenuItemNotFound, "Menu item with ID %d not found", d.ItemID)
		}
		if item.StockQuantity < d.Delta {
			return conflictError(ReasonInsufficientStock, "Insufficient stock for %s. Available: %d", item.Name, item.StockQuantity)
		}
	}
	return nil
}

// InventoryService exposes stock maintenance outside of order mutations.
type InventoryService interface {
	Restock(ctx context.Context, tenantID string, itemID uint, qty int) (*models.MenuItem, error)
	LowStock(ctx context.Context, tenantID string) ([]models.MenuItem, error)
}

type inventoryService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewInventoryService(store repository.Store, logger *zap.Logger) InventoryService {
	return &inventoryService{store: store, logger: logger}
}

func (s *inventoryService) Restock(ctx context.Context, tenantID string, itemID uint, qty int) (*models.MenuItem, error) {
	if err := requireTenant(ctx, s.store.Repositories(), tenantID); err != nil {
		return nil, err
	}
	var item *models.MenuItem
	err := s.store.Transaction(ctx, func(r *repository.Repositories) error {
		if err := NewInventoryLedger(r.MenuItems, s.logger).Restock(ctx, tenantID, itemID, qty); err != nil {
			return err
		}
		var err error
		item, err = r.MenuItems.GetByID(ctx, tenantID, itemID)
		return err
	})
	if err != nil {
		return nil, asServiceError("failed to restock menu item", err)
	}
	s.logger.Info("menu item restocked",
		zap.String("tenant_id", tenantID),
		zap.Uint("item_id", itemID),
		zap.Int("added", qty),
		zap.Int("stock_quantity", item.StockQuantity))
	return item, nil
}

func (s *inventoryService) LowStock(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	if err := requireTenant(ctx, s.store.Repositories(), tenantID); err != nil {
		return nil, err
	}
	items, err := s.store.Repositories().MenuItems.ListLowStock(ctx, tenantID)
	if err != nil {
		return nil, internalError("failed to list low stock items", err)
	}
	return items, nil
}

func requireTenant(ctx context.Context, r *repository.Repositories, tenantID string) error {
	ok, err := r.Tenants.Exists(ctx, tenantID)
	if err != nil {
		return internalError("failed to look up tenant", err)
	}
	if !ok {
		return notFoundError(ReasonTenantNotFound, "Tenant not found")
	}
	return nil
}

// asServiceError passes service errors through and wraps everything else as internal.
func asServiceError(message string, err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return internalError(message, err)
}
