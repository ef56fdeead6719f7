package chathub

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ManagerService owns the connection registry and serializes connect and
// disconnect events coming from the live channels.
type ManagerService struct {
	Registry *Registry
	Presence *PresenceBroadcaster
	Relay    *Relay

	// Channels
	RegisterCh   chan Client
	UnregisterCh chan Client

	bus    DeliveryBus
	origin string
	done   chan struct{}
}

// NewManagerService wires registry, presence and relay. bus may be nil.
func NewManagerService(bus DeliveryBus) *ManagerService {
	origin := uuid.NewString()
	registry := NewRegistry()

	var publisher Publisher
	if bus != nil {
		publisher = bus
	}

	return &ManagerService{
		Registry:     registry,
		Presence:     NewPresenceBroadcaster(registry),
		Relay:        NewRelay(registry, publisher, origin),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		bus:          bus,
		origin:       origin,
		done:         make(chan struct{}),
	}
}

// Origin identifies this process on the delivery bus.
func (m *ManagerService) Origin() string {
	return m.origin
}

// Connect registers c as the live channel of its participant.
func (m *ManagerService) Connect(c Client) {
	m.Registry.Register(c.GetUserID(), c)
	log.Info().Str("user_id", c.GetUserID()).Msg("client connected")
}

// Disconnect unregisters c if it is still the current channel and closes it.
func (m *ManagerService) Disconnect(c Client) {
	if m.Registry.Unregister(c.GetUserID(), c) {
		log.Info().Str("user_id", c.GetUserID()).Msg("client disconnected")
	} else {
		log.Debug().Str("user_id", c.GetUserID()).Msg("stale client closed")
	}
	c.Close()
}

// Run is the main dispatcher. It returns when ctx is cancelled.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)

	m.StartPubSubListener(ctx)

	for {
		select {
		case client := <-m.RegisterCh:
			m.Connect(client)
		case client := <-m.UnregisterCh:
			m.Disconnect(client)
		case <-ctx.Done():
			log.Info().Msg("chat hub stopped")
			return
		}
	}
}

// unregister hands c to the dispatcher unless it has already stopped.
func (m *ManagerService) unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
		c.Close()
	}
}
