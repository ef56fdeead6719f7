package storage

import (
	"context"
	"encoding/json"

	"pairchat/backend/internal/models"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// DeliveryChannel is the Redis Pub/Sub channel shared by all server instances.
const DeliveryChannel = "chat:deliveries"

// PublishDelivery publishes a relayed message for instances that may hold the
// recipient's live channel.
func (s *Service) PublishDelivery(ctx context.Context, d models.Delivery) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encode delivery")
	}
	if err := s.Redis.Publish(ctx, DeliveryChannel, payload).Err(); err != nil {
		return errors.Wrap(err, "publish delivery")
	}
	return nil
}

// SubscribeDeliveries subscribes to the delivery channel. Returns nil when no
// Redis client is configured.
func (s *Service) SubscribeDeliveries(ctx context.Context) *redis.PubSub {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Subscribe(ctx, DeliveryChannel)
}

// DecodeDelivery parses a bus payload.
func DecodeDelivery(payload string) (models.Delivery, error) {
	var d models.Delivery
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return d, errors.Wrap(err, "decode delivery")
	}
	return d, nil
}
