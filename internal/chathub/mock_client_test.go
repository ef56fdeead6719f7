package chathub_test

import (
	"context"
	"sync"

	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/models"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

// MockClient is a test double for the chathub.Client interface. It records
// every pushed event.
type MockClient struct {
	userID string

	mu      sync.Mutex
	events  []models.Event
	pushErr error
	closed  int
}

func newMockClient(userID string) *MockClient {
	return &MockClient{userID: userID}
}

func (c *MockClient) GetUserID() string { return c.userID }

func (c *MockClient) Push(ev models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pushErr != nil {
		return c.pushErr
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *MockClient) Run() {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *MockClient) failPushes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushErr = chathub.ErrClientClosed
}

func (c *MockClient) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) eventsOfType(typ string) []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *MockClient) deliveries() []models.Message {
	var out []models.Message
	for _, ev := range c.eventsOfType(models.EventDelivery) {
		out = append(out, *ev.Message)
	}
	return out
}

func (c *MockClient) rosters() [][]string {
	var out [][]string
	for _, ev := range c.eventsOfType(models.EventRoster) {
		out = append(out, ev.Online)
	}
	return out
}

func (c *MockClient) lastRoster() []string {
	rosters := c.rosters()
	if len(rosters) == 0 {
		return nil
	}
	return rosters[len(rosters)-1]
}

// MockBus is a testify mock of chathub.DeliveryBus.
type MockBus struct {
	mock.Mock
}

func (b *MockBus) PublishDelivery(ctx context.Context, d models.Delivery) error {
	args := b.Called(ctx, d)
	return args.Error(0)
}

func (b *MockBus) SubscribeDeliveries(ctx context.Context) *redis.PubSub {
	args := b.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*redis.PubSub)
}

var errBusDown = errors.New("redis: connection refused")
