// Package repotest provides an in-memory repository.Store for service and handler tests.
//
// Transactions are serialized and snapshot the whole state on entry, so a failing unit of work
// restores exactly what was there before it started, matching the all-or-nothing behaviour of the
// database-backed store.
package repotest

import (
	"context"
	"errors"
	"order_engine/internal/models"
	"order_engine/internal/repository"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type lineKey struct {
	orderID uint
	itemID  uint
}

type state struct {
	tenants    map[string]models.Tenant
	users      map[uint]models.User
	menuItems  map[uint]models.MenuItem
	orders     map[uint]models.Order
	orderItems map[lineKey]models.OrderItem
	history    []models.OrderHistory

	nextUserID  uint
	nextItemID  uint
	nextOrderID uint
	nextLineID  uint
}

func newState() *state {
	return &state{
		tenants:    map[string]models.Tenant{},
		users:      map[uint]models.User{},
		menuItems:  map[uint]models.MenuItem{},
		orders:     map[uint]models.Order{},
		orderItems: map[lineKey]models.OrderItem{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.tenants = make(map[string]models.Tenant, len(s.tenants))
	for k, v := range s.tenants {
		c.tenants[k] = v
	}
	c.users = make(map[uint]models.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	c.menuItems = make(map[uint]models.MenuItem, len(s.menuItems))
	for k, v := range s.menuItems {
		c.menuItems[k] = v
	}
	c.orders = make(map[uint]models.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = *v.Clone()
	}
	c.orderItems = make(map[lineKey]models.OrderItem, len(s.orderItems))
	for k, v := range s.orderItems {
		c.orderItems[k] = v
	}
	c.history = append([]models.OrderHistory(nil), s.history...)
	return &c
}

// Store is an in-memory repository.Store.
type Store struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	st    *state
	fail  map[string]error
	clock time.Time
	repos *repository.Repositories
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	s := &Store{
		st:    newState(),
		fail:  map[string]error{},
		clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	s.repos = &repository.Repositories{
		Tenants:    &tenantRepo{s},
		Users:      &userRepo{s},
		MenuItems:  &menuItemRepo{s},
		Orders:     &orderRepo{s},
		OrderItems: &orderItemRepo{s},
		History:    &historyRepo{s},
	}
	return s
}

func (s *Store) Repositories() *repository.Repositories {
	return s.repos
}

func (s *Store) Transaction(ctx context.Context, fn func(r *repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s.repos); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes the named operation (for example "history.append" or "orders.update") return err
// until cleared with a nil error.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// failure must be called with s.mu held.
func (s *Store) failure(op string) error {
	return s.fail[op]
}

// tick must be called with s.mu held; it yields strictly increasing timestamps.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *Store) SeedTenant(id string) models.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := models.Tenant{ID: id, Name: id, CreatedAt: s.tick()}
	s.st.tenants[id] = t
	return t
}

func (s *Store) SeedUser(tenantID, username string, role models.UserRole) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextUserID++
	u := models.User{ID: s.st.nextUserID, TenantID: tenantID, Username: username, Role: role, CreatedAt: s.tick()}
	s.st.users[u.ID] = u
	return u
}

func (s *Store) SeedMenuItem(tenantID, name, price string, stock int) models.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextItemID++
	m := models.MenuItem{
		ID:                s.st.nextItemID,
		TenantID:          tenantID,
		Name:              name,
		Price:             decimal.RequireFromString(price),
		StockQuantity:     stock,
		LowStockThreshold: 2,
		CreatedAt:         s.tick(),
	}
	s.st.menuItems[m.ID] = m
	return m
}

// SetMenuItem overwrites a menu item, for simulating catalog edits.
func (s *Store) SetMenuItem(item models.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.menuItems[item.ID] = item
}

func (s *Store) Stock(itemID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.menuItems[itemID].StockQuantity
}

// Order returns the stored order with its items, or nil.
func (s *Store) Order(orderID uint) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil
	}
	return s.withItems(o)
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) LineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orderItems)
}

// History returns decoded audit entries in append order.
func (s *Store) History() []models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditEntry, 0, len(s.st.history))
	for i := range s.st.history {
		entry, err := s.st.history[i].Entry()
		if err != nil {
			panic(err)
		}
		out = append(out, entry)
	}
	return out
}

// withItems must be called with s.mu held.
func (s *Store) withItems(o models.Order) *models.Order {
	c := o.Clone()
	c.Items = nil
	for key, line := range s.st.orderItems {
		if key.orderID == o.ID {
			c.Items = append(c.Items, line)
		}
	}
	sort.Slice(c.Items, func(i, j int) bool { return c.Items[i].ItemID < c.Items[j].ItemID })
	return c
}

var errDuplicateLine = errors.New("duplicate order line")
