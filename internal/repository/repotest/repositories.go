package repotest

import (
	"context"
	"order_engine/internal/models"
	"order_engine/internal/repository"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type tenantRepo struct{ s *Store }

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tenant.CreatedAt = r.s.tick()
	r.s.st.tenants[tenant.ID] = *tenant
	return nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.st.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *tenantRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("tenants.exists"); err != nil {
		return false, err
	}
	_, ok := r.s.st.tenants[id]
	return ok, nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.nextUserID++
	user.ID = r.s.st.nextUserID
	user.CreatedAt = r.s.tick()
	r.s.st.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, tenantID string, id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) LockByID(ctx context.Context, tenantID string, id uint) (*models.User, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *userRepo) GetByUsername(ctx context.Context, tenantID, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.st.users {
		if u.TenantID == tenantID && u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) ListByRole(ctx context.Context, tenantID string, role models.UserRole) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.User
	for _, u := range r.s.st.users {
		if u.TenantID == tenantID && u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type menuItemRepo struct{ s *Store }

func (r *menuItemRepo) Create(ctx context.Context, item *models.MenuItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("menu_items.create"); err != nil {
		return err
	}
	r.s.st.nextItemID++
	item.ID = r.s.st.nextItemID
	item.CreatedAt = r.s.tick()
	r.s.st.menuItems[item.ID] = *item
	return nil
}

func (r *menuItemRepo) GetByID(ctx context.Context, tenantID string, id uint) (*models.MenuItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.menuItems[id]
	if !ok || m.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *menuItemRepo) GetByIDs(ctx context.Context, tenantID string, ids []uint) (map[uint]models.MenuItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("menu_items.get"); err != nil {
		return nil, err
	}
	out := make(map[uint]models.MenuItem, len(ids))
	for _, id := range ids {
		if m, ok := r.s.st.menuItems[id]; ok && m.TenantID == tenantID {
			out[id] = m
		}
	}
	return out, nil
}

func (r *menuItemRepo) DecrementStock(ctx context.Context, tenantID string, id uint, qty int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("menu_items.decrement"); err != nil {
		return false, err
	}
	m, ok := r.s.st.menuItems[id]
	if !ok || m.TenantID != tenantID || m.StockQuantity < qty {
		return false, nil
	}
	m.StockQuantity -= qty
	r.s.st.menuItems[id] = m
	return true, nil
}

func (r *menuItemRepo) IncrementStock(ctx context.Context, tenantID string, id uint, qty int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("menu_items.increment"); err != nil {
		return false, err
	}
	m, ok := r.s.st.menuItems[id]
	if !ok || m.TenantID != tenantID {
		return false, nil
	}
	m.StockQuantity += qty
	r.s.st.menuItems[id] = m
	return true, nil
}

func (r *menuItemRepo) ListLowStock(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.MenuItem
	for _, m := range r.s.st.menuItems {
		if m.TenantID == tenantID && m.IsLowStock() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQuantity != out[j].StockQuantity {
			return out[i].StockQuantity < out[j].StockQuantity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(ctx context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.create"); err != nil {
		return err
	}
	r.s.st.nextOrderID++
	order.ID = r.s.st.nextOrderID
	order.CreatedAt = r.s.tick()
	order.UpdatedAt = order.CreatedAt
	stored := order.Clone()
	stored.Items = nil
	r.s.st.orders[order.ID] = *stored
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, tenantID string, id uint) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.st.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return r.s.withItems(o), nil
}

func (r *orderRepo) LockByID(ctx context.Context, tenantID string, id uint) (*models.Order, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *orderRepo) GetByIDAndPhone(ctx context.Context, tenantID string, id uint, phone string) (*models.Order, error) {
	o, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerPhone != phone {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (r *orderRepo) Update(ctx context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.update"); err != nil {
		return err
	}
	if _, ok := r.s.st.orders[order.ID]; !ok {
		return repository.ErrNotFound
	}
	order.UpdatedAt = r.s.tick()
	stored := order.Clone()
	stored.Items = nil
	r.s.st.orders[order.ID] = *stored
	return nil
}

func (r *orderRepo) Delete(ctx context.Context, tenantID string, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("orders.delete"); err != nil {
		return err
	}
	o, ok := r.s.st.orders[id]
	if !ok || o.TenantID != tenantID {
		return repository.ErrNotFound
	}
	delete(r.s.st.orders, id)
	for key := range r.s.st.orderItems {
		if key.orderID == id {
			delete(r.s.st.orderItems, key)
		}
	}
	return nil
}

func (r *orderRepo) List(ctx context.Context, tenantID string, filter repository.OrderFilter) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Order
	for _, o := range r.s.st.orders {
		if o.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(o.CustomerName, filter.Search) && !strings.Contains(o.CustomerPhone, filter.Search) {
			continue
		}
		out = append(out, *r.s.withItems(o))
	}
	column := filter.OrderColumn()
	less := func(a, b models.Order) bool {
		switch column {
		case "id":
			return a.ID < b.ID
		case "total_price":
			if !a.TotalPrice.Equal(b.TotalPrice) {
				return a.TotalPrice.LessThan(b.TotalPrice)
			}
			return a.ID < b.ID
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Descending() {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out, nil
}

func (r *orderRepo) FindEnrouteByRider(ctx context.Context, tenantID string, riderID, excludeID uint) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.st.orders {
		if o.TenantID == tenantID && o.ID != excludeID && o.Status == models.OrderEnroute &&
			o.RiderID != nil && *o.RiderID == riderID {
			return r.s.withItems(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *orderRepo) Totals(ctx context.Context, tenantID string) (repository.OrderTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	totals := repository.OrderTotals{Revenue: decimal.Zero}
	counted := map[uint]bool{}
	for key, line := range r.s.st.orderItems {
		o, ok := r.s.st.orders[key.orderID]
		if !ok || o.TenantID != tenantID || o.Status == models.OrderCanceled {
			continue
		}
		if !counted[o.ID] {
			counted[o.ID] = true
			totals.Orders++
		}
		totals.Revenue = totals.Revenue.Add(line.LineTotal())
	}
	return totals, nil
}

type orderItemRepo struct{ s *Store }

func (r *orderItemRepo) Create(ctx context.Context, orderItem *models.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("order_items.create"); err != nil {
		return err
	}
	key := lineKey{orderItem.OrderID, orderItem.ItemID}
	if _, exists := r.s.st.orderItems[key]; exists {
		return errDuplicateLine
	}
	r.s.st.nextLineID++
	orderItem.ID = r.s.st.nextLineID
	orderItem.CreatedAt = r.s.tick()
	r.s.st.orderItems[key] = *orderItem
	return nil
}

func (r *orderItemRepo) Update(ctx context.Context, orderItem *models.OrderItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("order_items.update"); err != nil {
		return err
	}
	key := lineKey{orderItem.OrderID, orderItem.ItemID}
	line, ok := r.s.st.orderItems[key]
	if !ok {
		return repository.ErrNotFound
	}
	line.Quantity = orderItem.Quantity
	line.Price = orderItem.Price
	line.Name = orderItem.Name
	line.UpdatedAt = r.s.tick()
	r.s.st.orderItems[key] = line
	return nil
}

func (r *orderItemRepo) Delete(ctx context.Context, tenantID string, orderID, itemID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("order_items.delete"); err != nil {
		return err
	}
	delete(r.s.st.orderItems, lineKey{orderID, itemID})
	return nil
}

func (r *orderItemRepo) DeleteByOrderID(ctx context.Context, tenantID string, orderID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for key, line := range r.s.st.orderItems {
		if key.orderID == orderID && line.TenantID == tenantID {
			delete(r.s.st.orderItems, key)
		}
	}
	return nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Append(ctx context.Context, entry models.AuditEntry) error {
	row, err := models.NewOrderHistory(entry)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("history.append"); err != nil {
		return err
	}
	r.s.st.history = append(r.s.st.history, *row)
	return nil
}

func (r *historyRepo) ListByTenant(ctx context.Context, tenantID string) ([]models.AuditEntry, error) {
	return r.list(func(h models.OrderHistory) bool { return h.TenantID == tenantID }, true)
}

func (r *historyRepo) ListByOrder(ctx context.Context, tenantID string, orderID uint) ([]models.AuditEntry, error) {
	return r.list(func(h models.OrderHistory) bool { return h.TenantID == tenantID && h.OrderID == orderID }, false)
}

func (r *historyRepo) list(match func(models.OrderHistory) bool, newestFirst bool) ([]models.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.AuditEntry
	for i := range r.s.st.history {
		if !match(r.s.st.history[i]) {
			continue
		}
		entry, err := r.s.st.history[i].Entry()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
