package services

import (
	"fmt"
	"order_engine/internal/models"
)

// Actor is whoever requests an order mutation. Each role is its own type and exposes only the
// capabilities that role has; the order service switches on the concrete type instead of
// comparing role strings.
type Actor interface {
	Role() models.UserRole
	// ChangedBy is the name recorded on audit entries.
	ChangedBy() string
	CanCreateOrders() bool
	CanEditOrders() bool
	CanCancelOrders() bool
	CanAssignRiders() bool
}

type Manager struct {
	UserID   uint
	Username string
}

type Kitchen struct {
	UserID   uint
	Username string
}

// Rider may only move delivery orders it is bound to (or is claiming) along enroute and delivered.
type Rider struct {
	UserID   uint
	Username string
}

// Customer places public orders and nothing else.
type Customer struct{}

func (Manager) Role() models.UserRole { return models.RoleManager }
func (m Manager) ChangedBy() string { return m.Username }
func (Manager) CanCreateOrders() bool { return true }
func (Manager) CanEditOrders() bool { return true }
func (Manager) CanCancelOrders() bool { return true }
func (Manager) CanAssignRiders() bool { return true }

func (Kitchen) Role() models.UserRole { return models.RoleKitchen }
func (k Kitchen) ChangedBy() string { return k.Username }
func (Kitchen) CanCreateOrders() bool { return true }
func (Kitchen) CanEditOrders() bool { return true }
func (Kitchen) CanCancelOrders() bool { return false }
func (Kitchen) CanAssignRiders() bool { return true }

func (Rider) Role() models.UserRole { return models.RoleRider }
func (r Rider) ChangedBy() string { return r.Username }
func (Rider) CanCreateOrders() bool { return false }
func (Rider) CanEditOrders() bool { return false }
func (Rider) CanCancelOrders() bool { return false }
func (Rider) CanAssignRiders() bool { return false }

func (Customer) Role() models.UserRole { return models.RoleCustomer }
func (Customer) ChangedBy() string { return "customer" }
func (Customer) CanCreateOrders() bool { return true }
func (Customer) CanEditOrders() bool { return false }
func (Customer) CanCancelOrders() bool { return false }
func (Customer) CanAssignRiders() bool { return false }

// NewStaffActor builds the actor for an authenticated staff identity.
func NewStaffActor(role models.UserRole, userID uint, username string) (Actor, error) {
	switch role {
	case models.RoleManager:
		return Manager{UserID: userID, Username: username}, nil
	case models.RoleKitchen:
		return Kitchen{UserID: userID, Username: username}, nil
	case models.RoleRider:
		return Rider{UserID: userID, Username: username}, nil
	}
	return nil, fmt.Errorf("role %q is not a staff role", role)
}
