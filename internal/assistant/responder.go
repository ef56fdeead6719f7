// Package assistant integrates the synthetic AI participant into the message
// pipeline. Each reply is generated by an independently scheduled task with
// its own timeout, so a slow completion never holds up the registry or the
// relay of unrelated messages.
package assistant

import (
	"context"
	"sync"
	"time"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/metrics"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Relayer is the live-push step shared with human-to-human messages.
type Relayer interface {
	Relay(ctx context.Context, msg models.Message) chathub.Outcome
}

type Settings struct {
	SystemPrompt string
	MaxTokens    int
	Timeout      time.Duration
	MaxInflight  int
}

type Responder struct {
	store     storage.Storage
	completer Completer
	relay     Relayer
	settings  Settings

	inflight *semaphore.Weighted
	group    singleflight.Group

	mu          sync.RWMutex
	participant *models.Participant
}

func NewResponder(store storage.Storage, completer Completer, relay Relayer, settings Settings) *Responder {
	if settings.MaxInflight <= 0 {
		settings.MaxInflight = 1
	}
	return &Responder{
		store:     store,
		completer: completer,
		relay:     relay,
		settings:  settings,
		inflight:  semaphore.NewWeighted(int64(settings.MaxInflight)),
	}
}

// Participant resolves the synthetic participant, creating it on first use.
// Concurrent first callers share one store round trip; the store's unique
// index covers callers in other processes.
func (r *Responder) Participant(ctx context.Context) (*models.Participant, error) {
	r.mu.RLock()
	p := r.participant
	r.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	v, err, _ := r.group.Do("ai-participant", func() (interface{}, error) {
		ai, err := r.store.GetOrCreateAIUser(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.participant = ai
		r.mu.Unlock()
		return ai, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Participant), nil
}

type replyResult struct {
	reply *models.Message
	err   error
}

// Reply produces, persists and relays the AI answer to an inbound message that
// has already been persisted. Failures are returned as *apperr.ReplyError; the
// inbound message is unaffected by them.
//
// The generation runs in its own goroutine, detached from ctx cancellation and
// bounded by Settings.Timeout. If ctx ends first the caller gets Timeout when
// its deadline passed and Unavailable when it was cancelled, while the task
// still completes and relays the reply.
func (r *Responder) Reply(ctx context.Context, inbound models.Message) (*models.Message, error) {
	if !r.inflight.TryAcquire(1) {
		metrics.AIReplies.WithLabelValues("unavailable").Inc()
		return nil, &apperr.ReplyError{Cause: errors.Wrap(apperr.ErrUnavailable, "too many replies in flight")}
	}

	done := make(chan replyResult, 1)
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.settings.Timeout)
	go func() {
		defer cancel()
		defer r.inflight.Release(1)

		reply, err := r.generate(taskCtx, inbound)
		done <- replyResult{reply: reply, err: err}
	}()

	select {
	case res := <-done:
		return res.reply, res.err
	case <-ctx.Done():
		return nil, &apperr.ReplyError{Cause: requesterGone(ctx)}
	}
}

func (r *Responder) generate(ctx context.Context, inbound models.Message) (*models.Message, error) {
	start := time.Now()
	text, err := r.completer.Complete(ctx, r.settings.SystemPrompt, inbound.Text, r.settings.MaxTokens)
	metrics.AIReplySeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		cause := classifyReplyError(ctx, err)
		metrics.AIReplies.WithLabelValues(apperr.Reason(cause)).Inc()
		log.Warn().Err(err).
			Str("message_id", inbound.ID).
			Str("user_id", inbound.SenderID).
			Msg("AI reply generation failed")
		return nil, &apperr.ReplyError{Cause: cause}
	}

	reply := &models.Message{
		SenderID:    inbound.RecipientID,
		RecipientID: inbound.SenderID,
		Text:        text,
	}
	// the reply is persisted even if the deadline passed while completing
	persistCtx := context.WithoutCancel(ctx)
	if err := r.store.SaveMessage(persistCtx, reply); err != nil {
		metrics.AIReplies.WithLabelValues("unavailable").Inc()
		return nil, &apperr.ReplyError{Cause: err}
	}
	metrics.AIReplies.WithLabelValues("ok").Inc()

	r.relay.Relay(persistCtx, *reply)
	return reply, nil
}

func requesterGone(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(apperr.ErrTimeout, "request deadline")
	}
	return errors.Wrapf(apperr.ErrUnavailable, "request ended: %v", ctx.Err())
}

func classifyReplyError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, apperr.ErrTimeout), errors.Is(err, apperr.ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Wrap(apperr.ErrTimeout, "completion")
	default:
		return errors.Wrapf(apperr.ErrUnavailable, "completion: %v", err)
	}
}
