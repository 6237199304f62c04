package realtime

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrSlowConsumer  = errors.New("channel send buffer full")
)

// Channel is one live connection. Send must not block.
type Channel interface {
	ID() string
	Send(payload []byte) error
}

type orderKey struct {
	tenantID string
	orderID  uint
}

// Registry indexes live channels by audience: staff by tenant, customers by order. Channels are
// looked up on delivery, never owned; closing a connection is the connection's business.
type Registry struct {
	mu        sync.RWMutex
	staff     map[string]map[string]Channel
	customers map[orderKey]map[string]Channel
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		staff:     make(map[string]map[string]Channel),
		customers: make(map[orderKey]map[string]Channel),
		logger:    logger,
	}
}

func (r *Registry) AddStaff(tenantID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.staff[tenantID]
	if !ok {
		set = make(map[string]Channel)
		r.staff[tenantID] = set
	}
	set[ch.ID()] = ch
}

func (r *Registry) RemoveStaff(tenantID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.staff[tenantID]; ok {
		delete(set, ch.ID())
		if len(set) == 0 {
			delete(r.staff, tenantID)
		}
	}
}

func (r *Registry) AddCustomer(tenantID string, orderID uint, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := orderKey{tenantID, orderID}
	set, ok := r.customers[key]
	if !ok {
		set = make(map[string]Channel)
		r.customers[key] = set
	}
	set[ch.ID()] = ch
}

func (r *Registry) RemoveCustomer(tenantID string, orderID uint, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := orderKey{tenantID, orderID}
	if set, ok := r.customers[key]; ok {
		delete(set, ch.ID())
		if len(set) == 0 {
			delete(r.customers, key)
		}
	}
}

// Deliver sends payload to the tenant's staff and to the order's customers and returns how many
// channels accepted it. Channels that fail are dropped from the registry.
func (r *Registry) Deliver(tenantID string, orderID uint, payload []byte) int {
	r.mu.RLock()
	staff := snapshot(r.staff[tenantID])
	customers := snapshot(r.customers[orderKey{tenantID, orderID}])
	r.mu.RUnlock()

	delivered := 0
	for _, ch := range staff {
		if err := ch.Send(payload); err != nil {
			r.logger.Debug("dropping staff channel", zap.String("tenant_id", tenantID), zap.String("channel", ch.ID()), zap.Error(err))
			r.RemoveStaff(tenantID, ch)
			continue
		}
		delivered++
	}
	for _, ch := range customers {
		if err := ch.Send(payload); err != nil {
			r.logger.Debug("dropping customer channel", zap.Uint("order_id", orderID), zap.String("channel", ch.ID()), zap.Error(err))
			r.RemoveCustomer(tenantID, orderID, ch)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Registry) StaffCount(tenantID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.staff[tenantID])
}

func (r *Registry) CustomerCount(tenantID string, orderID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.customers[orderKey{tenantID, orderID}])
}

func snapshot(set map[string]Channel) []Channel {
	out := make([]Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}
