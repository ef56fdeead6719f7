package chathub

import (
	"context"

	"pairchat/backend/internal/metrics"
	"pairchat/backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Outcome describes what a single relay attempt did.
type Outcome string

const (
	OutcomePushed  Outcome = "pushed"
	OutcomeOffline Outcome = "offline"
	OutcomeFailed  Outcome = "failed"
	OutcomeSelf    Outcome = "self"
)

// Publisher forwards deliveries for recipients that are not connected to this
// process. storage.Service implements it on top of Redis Pub/Sub.
type Publisher interface {
	PublishDelivery(ctx context.Context, d models.Delivery) error
}

// Relay pushes already-persisted messages to the recipient's live channel.
type Relay struct {
	registry  *Registry
	publisher Publisher
	origin    string
}

// NewRelay builds a relay. publisher may be nil for a single-instance deployment.
func NewRelay(registry *Registry, publisher Publisher, origin string) *Relay {
	return &Relay{registry: registry, publisher: publisher, origin: origin}
}

// Relay makes at most one push attempt for msg. The caller must have persisted
// msg already. Errors are never returned: an undelivered message stays
// retrievable through conversation history.
func (r *Relay) Relay(ctx context.Context, msg models.Message) Outcome {
	outcome := r.Deliver(msg)
	if outcome == OutcomeOffline && r.publisher != nil {
		d := models.Delivery{Origin: r.origin, Message: msg}
		if err := r.publisher.PublishDelivery(ctx, d); err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("delivery bus publish failed")
		}
	}
	return outcome
}

// Deliver performs the local lookup and push only. Only the recipient's
// channel is ever addressed, so a sender never receives its own message back.
func (r *Relay) Deliver(msg models.Message) Outcome {
	outcome := r.deliver(msg)
	metrics.RelayOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (r *Relay) deliver(msg models.Message) Outcome {
	if msg.SenderID == msg.RecipientID {
		return OutcomeSelf
	}

	c, ok := r.registry.Lookup(msg.RecipientID)
	if !ok {
		return OutcomeOffline
	}
	if err := c.Push(models.NewDeliveryEvent(msg)); err != nil {
		log.Debug().Err(err).
			Str("message_id", msg.ID).
			Str("recipient_id", msg.RecipientID).
			Msg("live push failed, message left for history fetch")
		return OutcomeFailed
	}
	return OutcomePushed
}
