package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Envelope addresses an encoded Message to one tenant and order.
type Envelope struct {
	TenantID string          `json:"tenant_id"`
	OrderID  uint            `json:"order_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Publisher hands an envelope to every instance that may hold listening channels.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// LocalPublisher delivers straight to this process's registry. It is used when no message bus is
// configured.
type LocalPublisher struct {
	registry *Registry
}

func NewLocalPublisher(registry *Registry) *LocalPublisher {
	return &LocalPublisher{registry: registry}
}

func (p *LocalPublisher) Publish(ctx context.Context, env Envelope) error {
	p.registry.Deliver(env.TenantID, env.OrderID, env.Payload)
	return nil
}

// PubSub is the subset of the Redis client the bus publisher and relay need.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handle func(payload []byte)) error
}

// BusPublisher fans envelopes out over a pub/sub channel. Every instance, this one included,
// receives them through its Relay.
type BusPublisher struct {
	bus     PubSub
	channel string
}

func NewBusPublisher(bus PubSub, channel string) *BusPublisher {
	return &BusPublisher{bus: bus, channel: channel}
}

func (p *BusPublisher) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	return p.bus.Publish(ctx, p.channel, raw)
}

// StartRelay subscribes to channel and delivers each envelope to registry until ctx is canceled.
func StartRelay(ctx context.Context, bus PubSub, channel string, registry *Registry, logger *zap.Logger) error {
	return bus.Subscribe(ctx, channel, func(payload []byte) {
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logger.Warn("discarding malformed fanout envelope", zap.Error(err))
			return
		}
		n := registry.Deliver(env.TenantID, env.OrderID, env.Payload)
		logger.Debug("relayed order message",
			zap.String("tenant_id", env.TenantID),
			zap.Uint("order_id", env.OrderID),
			zap.Int("channels", n))
	})
}
