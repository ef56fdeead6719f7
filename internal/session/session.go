// Package session is the client-side state of one authenticated participant:
// the live channel lifecycle, the roster and the message list of the selected
// conversation with optimistic sends.
package session

import (
	"context"
	"sync"
	"time"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/messaging"
	"pairchat/backend/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Status tracks an entry of the local message list.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

var ErrNoPeer = errors.New("no conversation selected")

type LocalMessage struct {
	models.Message
	Status Status
}

type Options struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReconnectAttempts: config.ReconnectAttempts,
		ReconnectDelay:    config.ReconnectDelay,
	}
}

type Session struct {
	api    API
	dialer Dialer
	selfID string
	opts   Options

	mu       sync.Mutex
	state    State
	handlers map[string]func(models.Event)
	conn     Conn
	cancel   context.CancelFunc
	online   map[string]struct{}
	users    []models.Participant
	peer     *models.Participant
	messages []LocalMessage
	onChange func()
}

func New(api API, dialer Dialer, selfID string, opts Options) *Session {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 1
	}
	return &Session{
		api:      api,
		dialer:   dialer,
		selfID:   selfID,
		opts:     opts,
		state:    StateDisconnected,
		handlers: map[string]func(models.Event){},
		online:   map[string]struct{}{},
	}
}

// OnChange registers fn to be called after every state, roster or message
// list change. fn runs without the session lock held.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the live channel. It is a no-op unless the session is
// disconnected. After a transport failure the session reconnects on its own.
func (s *Session) Connect(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.state = StateConnecting
	s.cancel = cancel
	s.mu.Unlock()
	s.notify()

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.transition(loopCtx, StateDisconnected)
		cancel()
		return err
	}
	if !s.attach(loopCtx, conn) {
		return errors.Wrap(context.Canceled, "disconnected while connecting")
	}
	go s.run(loopCtx, conn)
	return nil
}

// Disconnect closes the live channel and stops reconnecting. The loop context
// is cancelled under the lock that transition and attach check it under.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	conn := s.conn
	s.cancel, s.conn = nil, nil
	s.state = StateDisconnected
	s.online = map[string]struct{}{}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.notify()
}

// transition sets state unless the loop owning ctx has been disconnected.
func (s *Session) transition(ctx context.Context, state State) bool {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.mu.Unlock()
	s.notify()
	return true
}

// attach installs conn as the live channel unless the loop owning ctx has
// been disconnected, in which case conn is closed.
func (s *Session) attach(ctx context.Context, conn Conn) bool {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return false
	}
	s.conn = conn
	s.state = StateConnected
	s.subscribeLocked()
	s.mu.Unlock()
	s.notify()
	return true
}

// subscribeLocked installs one handler per event type. Re-subscribing replaces
// the entries, so reconnects never stack handlers.
func (s *Session) subscribeLocked() {
	s.handlers[models.EventRoster] = s.onRoster
	s.handlers[models.EventDelivery] = s.onDelivery
}

// HandlerCount is the number of active event handlers.
func (s *Session) HandlerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *Session) run(ctx context.Context, conn Conn) {
	for {
		s.read(conn)

		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		if s.conn == conn {
			s.conn = nil
		}
		// the roster is stale once the channel is gone
		s.online = map[string]struct{}{}
		s.mu.Unlock()
		next, err := s.reconnect(ctx)
		if err != nil {
			if s.transition(ctx, StateDisconnected) {
				log.Warn().Err(err).Msg("live channel lost, giving up")
			}
			return
		}
		conn = next
	}
}

func (s *Session) read(conn Conn) {
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			log.Debug().Err(err).Msg("live channel closed")
			return
		}
		s.dispatch(ev)
	}
}

func (s *Session) reconnect(ctx context.Context) (Conn, error) {
	if !s.transition(ctx, StateReconnecting) {
		return nil, ctx.Err()
	}

	var conn Conn
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: s.opts.ReconnectDelay}, uint64(s.opts.ReconnectAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(func() error {
		c, err := s.dialer.Dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, policy, func(err error, next time.Duration) {
		log.Debug().Err(err).Dur("retry_in", next).Msg("reconnect attempt failed")
	})
	if err != nil {
		return nil, err
	}

	if !s.attach(ctx, conn) {
		return nil, ctx.Err()
	}
	return conn, nil
}

func (s *Session) dispatch(ev models.Event) {
	s.mu.Lock()
	h := s.handlers[ev.Type]
	s.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (s *Session) onRoster(ev models.Event) {
	online := make(map[string]struct{}, len(ev.Online))
	for _, id := range ev.Online {
		online[id] = struct{}{}
	}
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
	s.notify()
}

// onDelivery appends the pushed message as is. Pushes only ever reach the
// recipient, so they cannot duplicate an optimistic entry.
func (s *Session) onDelivery(ev models.Event) {
	if ev.Message == nil {
		return
	}
	s.mu.Lock()
	s.messages = append(s.messages, LocalMessage{Message: *ev.Message, Status: StatusSent})
	s.mu.Unlock()
	s.notify()
}

func (s *Session) IsOnline(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[id]
	return ok
}

// OnlineCount is the number of other participants online.
func (s *Session) OnlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.online)
	if _, ok := s.online[s.selfID]; ok {
		n--
	}
	return n
}

// LoadUsers refreshes the participant directory.
func (s *Session) LoadUsers(ctx context.Context) error {
	users, err := s.api.Users(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	s.notify()
	return nil
}

// Users returns the directory, optionally only the participants online now.
func (s *Session) Users(onlineOnly bool) []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !onlineOnly {
		return append([]models.Participant(nil), s.users...)
	}
	return lo.Filter(s.users, func(p models.Participant, _ int) bool {
		_, ok := s.online[p.ID]
		return ok
	})
}

// SelectPeer switches the conversation and replaces the local list with its history.
func (s *Session) SelectPeer(ctx context.Context, peer models.Participant) error {
	history, err := s.api.History(ctx, peer.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.peer = &peer
	s.messages = lo.Map(history, func(m models.Message, _ int) LocalMessage {
		return LocalMessage{Message: m, Status: StatusSent}
	})
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) Peer() *models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil {
		return nil
	}
	p := *s.peer
	return &p
}

// Messages returns a copy of the local list in insertion order.
func (s *Session) Messages() []LocalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LocalMessage(nil), s.messages...)
}

// Send appends an optimistic entry to the list, then sends it. On success the
// entry is replaced in place by the persisted message; on failure it stays in
// the list marked failed and the error is returned. For the AI participant
// the reply is appended from the response only while no live channel is
// connected, otherwise it arrives as a push.
func (s *Session) Send(ctx context.Context, text, image string) (*models.Message, error) {
	s.mu.Lock()
	if s.peer == nil {
		s.mu.Unlock()
		return nil, ErrNoPeer
	}
	peer := *s.peer
	tempID := "temp-" + uuid.NewString()
	s.messages = append(s.messages, LocalMessage{
		Message: models.Message{
			ID:          tempID,
			SenderID:    s.selfID,
			RecipientID: peer.ID,
			Text:        text,
			Image:       image,
			CreatedAt:   time.Now(),
		},
		Status: StatusPending,
	})
	s.mu.Unlock()
	s.notify()

	if !peer.IsAI {
		msg, err := s.api.Send(ctx, peer.ID, messaging.SendInput{Text: text, Image: image})
		if err != nil {
			s.markFailed(tempID)
			return nil, err
		}
		s.confirm(tempID, *msg)
		return msg, nil
	}

	exchange, err := s.api.ChatAI(ctx, text)
	if exchange == nil || exchange.Message == nil {
		if err == nil {
			err = errors.Wrap(apperr.ErrUnavailable, "empty AI response")
		}
		s.markFailed(tempID)
		return nil, err
	}
	s.confirm(tempID, *exchange.Message)
	if err != nil {
		// own message persisted, reply failed
		return exchange.Message, err
	}
	if exchange.Reply != nil && s.State() != StateConnected {
		s.mu.Lock()
		if s.peer != nil && s.peer.ID == peer.ID {
			s.messages = append(s.messages, LocalMessage{Message: *exchange.Reply, Status: StatusSent})
		}
		s.mu.Unlock()
		s.notify()
	}
	return exchange.Message, nil
}

func (s *Session) confirm(tempID string, msg models.Message) {
	s.update(tempID, func(m *LocalMessage) {
		m.Message = msg
		m.Status = StatusSent
	})
}

func (s *Session) markFailed(tempID string) {
	s.update(tempID, func(m *LocalMessage) { m.Status = StatusFailed })
}

// update applies fn to the entry with id. The entry is gone if the
// conversation was switched in the meantime.
func (s *Session) update(id string, fn func(m *LocalMessage)) {
	s.mu.Lock()
	_, idx, found := lo.FindIndexOf(s.messages, func(m LocalMessage) bool { return m.ID == id })
	if found {
		fn(&s.messages[idx])
	}
	s.mu.Unlock()
	if found {
		s.notify()
	}
}

// linearBackOff waits step, 2*step, 3*step and so on between attempts.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
