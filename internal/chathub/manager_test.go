package chathub_test

import (
	"context"
	"testing"
	"time"

	"pairchat/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestManager_Run(t *testing.T) {
	bus := new(MockBus)
	bus.On("SubscribeDeliveries", mock.Anything).Return(nil)
	hub := chathub.NewManagerService(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	clientA := newMockClient("user_A")
	hub.RegisterCh <- clientA
	assert.Eventually(t, func() bool {
		_, ok := hub.Registry.Lookup("user_A")
		return ok
	}, time.Second, 10*time.Millisecond)

	hub.UnregisterCh <- clientA
	assert.Eventually(t, func() bool {
		_, ok := hub.Registry.Lookup("user_A")
		return !ok && clientA.closeCount() == 1
	}, time.Second, 10*time.Millisecond)

	bus.AssertExpectations(t)
}

func TestManager_DisconnectOfReplacedClient(t *testing.T) {
	hub := chathub.NewManagerService(nil)

	old := newMockClient("user_A")
	current := newMockClient("user_A")
	hub.Connect(old)
	hub.Connect(current)

	hub.Disconnect(old)

	got, ok := hub.Registry.Lookup("user_A")
	assert.True(t, ok)
	assert.Same(t, current, got)
	assert.Equal(t, 1, old.closeCount())
	assert.Equal(t, 0, current.closeCount())
}

func TestManager_ConnectBroadcastsRoster(t *testing.T) {
	hub := chathub.NewManagerService(nil)

	a := newMockClient("a")
	b := newMockClient("b")
	hub.Connect(a)
	hub.Connect(b)

	assert.Equal(t, []string{"a", "b"}, a.lastRoster())
	assert.Equal(t, []string{"a", "b"}, b.lastRoster())
}

func TestManager_OriginIsStable(t *testing.T) {
	hub := chathub.NewManagerService(nil)
	assert.NotEmpty(t, hub.Origin())
	assert.Equal(t, hub.Origin(), hub.Origin())
	assert.NotEqual(t, hub.Origin(), chathub.NewManagerService(nil).Origin())
}
