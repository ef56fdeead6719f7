package chathub

import (
	"sync"

	"pairchat/backend/internal/metrics"
	"pairchat/backend/internal/models"

	"github.com/rs/zerolog/log"
)

// PresenceBroadcaster pushes the full roster to every registered channel
// whenever the registry changes.
type PresenceBroadcaster struct {
	registry *Registry

	// serializes rounds so the last round always carries the latest registry state
	mu sync.Mutex
}

// NewPresenceBroadcaster hooks a broadcaster onto the registry's change notifications.
func NewPresenceBroadcaster(registry *Registry) *PresenceBroadcaster {
	p := &PresenceBroadcaster{registry: registry}
	registry.OnChange(p.Broadcast)
	return p
}

// Broadcast sends one roster round. Pushes are fire-and-forget.
func (p *PresenceBroadcaster) Broadcast() {
	p.mu.Lock()
	defer p.mu.Unlock()

	online, clients := p.registry.view()
	ev := models.NewRosterEvent(online)
	for _, c := range clients {
		if err := c.Push(ev); err != nil {
			log.Debug().Err(err).Str("user_id", c.GetUserID()).Msg("roster push dropped")
		}
	}
	metrics.OnlineParticipants.Set(float64(len(online)))
}
