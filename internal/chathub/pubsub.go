package chathub

import (
	"context"

	"pairchat/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DeliveryBus carries deliveries between server instances.
type DeliveryBus interface {
	Publisher
	SubscribeDeliveries(ctx context.Context) *redis.PubSub
}

// StartPubSubListener pushes deliveries published by other instances to
// recipients registered in this process.
func (m *ManagerService) StartPubSubListener(ctx context.Context) {
	if m.bus == nil {
		return
	}
	pubsub := m.bus.SubscribeDeliveries(ctx)
	if pubsub == nil {
		return
	}

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				m.handleBusMessage(msg)
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Info().Str("origin", m.origin).Msg("delivery bus listener started")
}

func (m *ManagerService) handleBusMessage(msg *redis.Message) {
	d, err := storage.DecodeDelivery(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed delivery")
		return
	}
	if d.Origin == m.origin {
		return
	}
	m.Relay.Deliver(d.Message)
}
