package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned by every repository lookup that matches no row.
var ErrNotFound = errors.New("record not found")

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Tenants    TenantRepository
	Users      UserRepository
	MenuItems  MenuItemRepository
	Orders     OrderRepository
	OrderItems OrderItemRepository
	History    OrderHistoryRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() *Repositories
	// Transaction runs fn against repositories bound to a single database transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(r *Repositories) error) error
}

type gormStore struct {
	db    *gorm.DB
	repos *Repositories
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, repos: newRepositories(db)}
}

func newRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tenants:    NewTenantRepository(db),
		Users:      NewUserRepository(db),
		MenuItems:  NewMenuItemRepository(db),
		Orders:     NewOrderRepository(db),
		OrderItems: NewOrderItemRepository(db),
		History:    NewOrderHistoryRepository(db),
	}
}

func (s *gormStore) Repositories() *Repositories {
	return s.repos
}

func (s *gormStore) Transaction(ctx context.Context, fn func(r *Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
