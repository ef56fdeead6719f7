package assistant_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/assistant"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, systemPrompt, userText string, maxTokens int) (string, error) {
	args := m.Called(ctx, systemPrompt, userText, maxTokens)
	return args.String(0), args.Error(1)
}

// recordingClient captures deliveries pushed to one identity.
type recordingClient struct {
	userID string
	mu     sync.Mutex
	events []models.Event
}

func (c *recordingClient) GetUserID() string { return c.userID }
func (c *recordingClient) Run()              {}
func (c *recordingClient) Close()            {}
func (c *recordingClient) Push(ev models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *recordingClient) deliveries() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Message
	for _, ev := range c.events {
		if ev.Type == models.EventDelivery {
			out = append(out, *ev.Message)
		}
	}
	return out
}

type fixture struct {
	store     *storage.Service
	hub       *chathub.ManagerService
	completer *MockCompleter
	responder *assistant.Responder
}

func newFixture(t *testing.T, timeout time.Duration, maxInflight int) *fixture {
	t.Helper()
	db, err := storage.OpenDB("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := storage.NewStorageService(db, nil)
	hub := chathub.NewManagerService(nil)
	completer := new(MockCompleter)
	responder := assistant.NewResponder(store, completer, hub.Relay, assistant.Settings{
		SystemPrompt: "be nice",
		MaxTokens:    150,
		Timeout:      timeout,
		MaxInflight:  maxInflight,
	})
	return &fixture{store: store, hub: hub, completer: completer, responder: responder}
}

// persistInbound stores a human -> AI message the way the messaging service does.
func (f *fixture) persistInbound(t *testing.T, from, text string) models.Message {
	t.Helper()
	ai, err := f.responder.Participant(context.Background())
	require.NoError(t, err)
	msg := models.Message{SenderID: from, RecipientID: ai.ID, Text: text}
	require.NoError(t, f.store.SaveMessage(context.Background(), &msg))
	return msg
}

func TestResponder_ParticipantIsSingleton(t *testing.T) {
	f := newFixture(t, time.Second, 4)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := f.responder.Participant(context.Background())
			if assert.NoError(t, err) {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	require.NoError(t, f.store.DB.Model(&models.Participant{}).Where("is_ai = ?", true).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestResponder_ReplyPersistsAndPushesToHuman(t *testing.T) {
	f := newFixture(t, time.Second, 4)
	human := &recordingClient{userID: "user_C"}
	f.hub.Connect(human)

	inbound := f.persistInbound(t, "user_C", "hello")
	f.completer.On("Complete", mock.Anything, "be nice", "hello", 150).Return("hey there!", nil).Once()

	reply, err := f.responder.Reply(context.Background(), inbound)
	require.NoError(t, err)

	assert.Equal(t, inbound.RecipientID, reply.SenderID)
	assert.Equal(t, "user_C", reply.RecipientID)
	assert.Equal(t, "hey there!", reply.Text)

	history, err := f.store.GetConversation(context.Background(), "user_C", inbound.RecipientID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Text)
	assert.Equal(t, "hey there!", history[1].Text)

	pushed := human.deliveries()
	require.Len(t, pushed, 1)
	assert.Equal(t, reply.ID, pushed[0].ID)
	f.completer.AssertExpectations(t)
}

func TestResponder_TimeoutKeepsInbound(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond, 4)
	human := &recordingClient{userID: "user_C"}
	f.hub.Connect(human)

	inbound := f.persistInbound(t, "user_C", "hello")
	f.completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded).Once()

	reply, err := f.responder.Reply(context.Background(), inbound)

	assert.Nil(t, reply)
	var replyErr *apperr.ReplyError
	require.True(t, errors.As(err, &replyErr))
	assert.ErrorIs(t, err, apperr.ErrTimeout)

	history, err := f.store.GetConversation(context.Background(), "user_C", inbound.RecipientID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, inbound.ID, history[0].ID)
	assert.Empty(t, human.deliveries())
}

func TestResponder_UnavailableCollaborator(t *testing.T) {
	f := newFixture(t, time.Second, 4)
	inbound := f.persistInbound(t, "user_C", "hello")
	f.completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.Wrap(apperr.ErrUnavailable, "rate limited")).Once()

	_, err := f.responder.Reply(context.Background(), inbound)

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrTimeout)
}

func TestResponder_UnclassifiedErrorBecomesUnavailable(t *testing.T) {
	f := newFixture(t, time.Second, 4)
	inbound := f.persistInbound(t, "user_C", "hello")
	f.completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("tls handshake failure")).Once()

	_, err := f.responder.Reply(context.Background(), inbound)

	var replyErr *apperr.ReplyError
	assert.True(t, errors.As(err, &replyErr))
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestResponder_DoesNotBlockUnrelatedRelay(t *testing.T) {
	f := newFixture(t, 5*time.Second, 4)
	inbound := f.persistInbound(t, "user_C", "slow question")

	release := make(chan struct{})
	f.completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return("answer", nil).Once()

	replyDone := make(chan error, 1)
	go func() {
		_, err := f.responder.Reply(context.Background(), inbound)
		replyDone <- err
	}()

	// unrelated participants connect and exchange messages while the completion is pending
	b := &recordingClient{userID: "user_B"}
	f.hub.Connect(b)
	outcome := f.hub.Relay.Relay(context.Background(), models.Message{ID: "m1", SenderID: "user_A", RecipientID: "user_B", Text: "hi"})
	assert.Equal(t, chathub.OutcomePushed, outcome)
	assert.Len(t, b.deliveries(), 1)

	close(release)
	select {
	case err := <-replyDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reply did not complete")
	}
}

func TestResponder_InflightBound(t *testing.T) {
	f := newFixture(t, 5*time.Second, 1)
	first := f.persistInbound(t, "user_C", "one")
	second := f.persistInbound(t, "user_D", "two")

	started := make(chan struct{})
	release := make(chan struct{})
	f.completer.On("Complete", mock.Anything, mock.Anything, "one", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return("ok", nil).Once()

	go func() { _, _ = f.responder.Reply(context.Background(), first) }()
	<-started

	_, err := f.responder.Reply(context.Background(), second)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	close(release)
}

func TestResponder_CallerCancelStillPersistsReply(t *testing.T) {
	f := newFixture(t, 5*time.Second, 4)
	human := &recordingClient{userID: "user_C"}
	f.hub.Connect(human)
	inbound := f.persistInbound(t, "user_C", "hello")

	release := make(chan struct{})
	f.completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return("late answer", nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := f.responder.Reply(ctx, inbound)
		errCh <- err
	}()
	cancel()
	err := <-errCh
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrTimeout)

	close(release)
	assert.Eventually(t, func() bool { return len(human.deliveries()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestResponder_CallerDeadlineIsTimeout(t *testing.T) {
	f := newFixture(t, 5*time.Second, 4)
	inbound := f.persistInbound(t, "user_C", "hello")

	release := make(chan struct{})
	defer close(release)
	f.completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return("late answer", nil).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.responder.Reply(ctx, inbound)

	var replyErr *apperr.ReplyError
	require.True(t, errors.As(err, &replyErr))
	assert.ErrorIs(t, err, apperr.ErrTimeout)
}
