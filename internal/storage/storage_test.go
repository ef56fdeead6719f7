package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *storage.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := storage.OpenDB("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return storage.NewStorageService(db, nil)
}

func TestGetOrCreateAIUser_Idempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, err := s.GetOrCreateAIUser(ctx)
	require.NoError(t, err)
	second, err := s.GetOrCreateAIUser(ctx)
	require.NoError(t, err)

	assert.True(t, first.IsAI)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateAIUser_ConcurrentFirstUse(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	const callers = 8
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ai, err := s.GetOrCreateAIUser(ctx)
			if assert.NoError(t, err) {
				ids[i] = ai.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	require.NoError(t, s.DB.Model(&models.Participant{}).Where("is_ai = ?", true).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSecondAIParticipantRejectedByIndex(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.GetOrCreateAIUser(ctx)
	require.NoError(t, err)

	err = s.SaveUser(ctx, &models.Participant{FullName: "Impostor", Email: "other@ai.com", IsAI: true})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestGetConversation_BothDirectionsAscending(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	msgs := []*models.Message{
		{SenderID: "a", RecipientID: "b", Text: "one", CreatedAt: base},
		{SenderID: "b", RecipientID: "a", Text: "two", CreatedAt: base.Add(time.Minute)},
		{SenderID: "a", RecipientID: "c", Text: "elsewhere", CreatedAt: base.Add(2 * time.Minute)},
		{SenderID: "a", RecipientID: "b", Text: "three", CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, m := range msgs {
		require.NoError(t, s.SaveMessage(ctx, m))
		assert.NotEmpty(t, m.ID)
	}

	history, err := s.GetConversation(ctx, "b", "a")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Text)
	assert.Equal(t, "two", history[1].Text)
	assert.Equal(t, "three", history[2].Text)
}

func TestGetConversation_EmptyIsNotNil(t *testing.T) {
	s := newTestService(t)

	history, err := s.GetConversation(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestGetUserByID_NotFound(t *testing.T) {
	s := newTestService(t)

	_, err := s.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListUsersExcept(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := &models.Participant{FullName: "Alice", Email: "alice@example.com"}
	bob := &models.Participant{FullName: "Bob", Email: "bob@example.com"}
	require.NoError(t, s.SaveUser(ctx, alice))
	require.NoError(t, s.SaveUser(ctx, bob))

	users, err := s.ListUsersExcept(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, bob.ID, users[0].ID)
}

func TestPublishDelivery_NoRedisIsNoop(t *testing.T) {
	s := newTestService(t)

	assert.NoError(t, s.PublishDelivery(context.Background(), models.Delivery{Origin: "x"}))
	assert.Nil(t, s.SubscribeDeliveries(context.Background()))
}

func TestDecodeDelivery(t *testing.T) {
	d, err := storage.DecodeDelivery(`{"origin":"node-1","message":{"_id":"m1","senderId":"a","receiverId":"b","text":"hi","createdAt":"2024-01-01T00:00:00Z"}}`)
	require.NoError(t, err)
	assert.Equal(t, "node-1", d.Origin)
	assert.Equal(t, "b", d.Message.RecipientID)

	_, err = storage.DecodeDelivery("{")
	assert.Error(t, err)
}
