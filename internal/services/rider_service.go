package services

import (
	"context"
	"errors"
	"order_engine/internal/models"
	"order_engine/internal/repository"

	"go.uber.org/zap"
)

// RiderPolicy decides whether a rider may be bound to an order. It reads through the repositories
// of the surrounding unit of work and locks the rider's user row, so two concurrent assignments of
// the same rider are serialized.
type RiderPolicy struct {
	users  repository.UserRepository
	orders repository.OrderRepository
}

func NewRiderPolicy(users repository.UserRepository, orders repository.OrderRepository) *RiderPolicy {
	return &RiderPolicy{users: users, orders: orders}
}

// Assign returns the rider id to bind to order once it moves to target. order is the state before
// the change; a new order has ID zero. Checks run in order: the candidate must be a rider of the
// tenant, must not be enroute on another order, and when the actor is the rider itself, the
// transition must be one a rider may perform.
func (p *RiderPolicy) Assign(ctx context.Context, tenantID string, order *models.Order, candidateID uint, actor Actor, target models.OrderStatus) (uint, error) {
	rider, err := p.users.LockByID(ctx, tenantID, candidateID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && rider.Role != models.RoleRider) {
		return 0, notFoundError(ReasonRiderNotFound, "Rider %d not found", candidateID)
	}
	if err != nil {
		return 0, internalError("failed to look up rider", err)
	}

	busy, err := p.orders.FindEnrouteByRider(ctx, tenantID, candidateID, order.ID)
	if err == nil {
		return 0, conflictError(ReasonRiderBusy, "Rider %s is already delivering order %d", rider.Username, busy.ID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return 0, internalError("failed to check rider availability", err)
	}

	switch a := actor.(type) {
	case Rider:
		if a.UserID != candidateID || !riderMayMove(order, a.UserID, target) {
			return 0, forbiddenError(ReasonRiderNotAuthorized, "Rider cannot move order %d from %s to %s", order.ID, order.Status, target)
		}
	default:
		if !actor.CanAssignRiders() {
			return 0, forbiddenError(ReasonActionNotPermitted, "Not allowed to assign riders")
		}
	}
	return candidateID, nil
}

// riderMayMove covers the two moves open to riders: claiming a completed order that is free or
// already theirs, and delivering their own enroute order.
func riderMayMove(order *models.Order, riderID uint, target models.OrderStatus) bool {
	boundToRider := order.RiderID != nil && *order.RiderID == riderID
	switch target {
	case models.OrderEnroute:
		return order.IsDelivery && order.Status == models.OrderCompleted && (order.RiderID == nil || boundToRider)
	case models.OrderDelivered:
		return order.Status == models.OrderEnroute && boundToRider
	default:
		return false
	}
}

// RiderStatus is a rider together with whether they are out on a delivery.
type RiderStatus struct {
	UserID       uint   `json:"user_id"`
	Username     string `json:"username"`
	Busy         bool   `json:"busy"`
	CurrentOrder *uint  `json:"current_order_id"`
}

type RiderService interface {
	ListRiders(ctx context.Context, tenantID string) ([]RiderStatus, error)
}

type riderService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewRiderService(store repository.Store, logger *zap.Logger) RiderService {
	return &riderService{store: store, logger: logger}
}

func (s *riderService) ListRiders(ctx context.Context, tenantID string) ([]RiderStatus, error) {
	r := s.store.Repositories()
	if err := requireTenant(ctx, r, tenantID); err != nil {
		return nil, err
	}
	riders, err := r.Users.ListByRole(ctx, tenantID, models.RoleRider)
	if err != nil {
		return nil, internalError("failed to list riders", err)
	}

	out := make([]RiderStatus, 0, len(riders))
	for _, rider := range riders {
		status := RiderStatus{UserID: rider.ID, Username: rider.Username}
		order, err := r.Orders.FindEnrouteByRider(ctx, tenantID, rider.ID, 0)
		switch {
		case err == nil:
			id := order.ID
			status.Busy = true
			status.CurrentOrder = &id
		case !errors.Is(err, repository.ErrNotFound):
			return nil, internalError("failed to check rider availability", err)
		}
		out = append(out, status)
	}
	return out, nil
}
