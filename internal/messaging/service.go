// Package messaging implements the send, history and directory operations:
// persist first, then relay, then hand AI-addressed messages to the responder.
package messaging

import (
	"context"
	"strings"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type Relayer interface {
	Relay(ctx context.Context, msg models.Message) chathub.Outcome
}

// Responder is the AI participant as seen by the send path.
type Responder interface {
	Participant(ctx context.Context) (*models.Participant, error)
	Reply(ctx context.Context, inbound models.Message) (*models.Message, error)
}

type SendInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// SendResult carries the persisted message and, for AI conversations, the reply.
type SendResult struct {
	Message *models.Message
	Reply   *models.Message
}

type Service struct {
	Storage   storage.Storage
	Relay     Relayer
	Responder Responder
}

func NewService(s storage.Storage, relay Relayer, responder Responder) *Service {
	return &Service{Storage: s, Relay: relay, Responder: responder}
}

// Send persists a message from senderID to recipientID and relays it. When
// the recipient is the AI participant the message is not relayed; the reply is
// generated and relayed instead. A reply failure is returned as
// *apperr.ReplyError together with a non-nil result.
func (s *Service) Send(ctx context.Context, senderID, recipientID string, in SendInput) (*SendResult, error) {
	msg := models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        strings.TrimSpace(in.Text),
		Image:       strings.TrimSpace(in.Image),
	}
	if msg.IsEmpty() {
		return nil, errors.Wrap(apperr.ErrInvalid, "message needs text or an image")
	}

	recipient, err := s.Storage.GetUserByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient.IsAI {
		if msg.Image != "" {
			return nil, errors.Wrap(apperr.ErrInvalid, "images are not supported in AI conversations")
		}
		if msg.Text == "" {
			return nil, errors.Wrap(apperr.ErrInvalid, "AI conversations need text")
		}
	}

	if err := s.Storage.SaveMessage(ctx, &msg); err != nil {
		return nil, err
	}
	result := &SendResult{Message: &msg}

	if !recipient.IsAI {
		s.Relay.Relay(ctx, msg)
		return result, nil
	}
	// the AI participant never holds a live channel on any instance
	reply, err := s.Responder.Reply(ctx, msg)
	if err != nil {
		return result, err
	}
	result.Reply = reply
	return result, nil
}

// SendToAI resolves the AI participant and sends text to it.
func (s *Service) SendToAI(ctx context.Context, senderID, text string) (*SendResult, error) {
	ai, err := s.Responder.Participant(ctx)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, senderID, ai.ID, SendInput{Text: text})
}

// History returns the conversation between selfID and peerID, oldest first.
func (s *Service) History(ctx context.Context, selfID, peerID string) ([]models.Message, error) {
	if _, err := s.Storage.GetUserByID(ctx, peerID); err != nil {
		return nil, err
	}
	return s.Storage.GetConversation(ctx, selfID, peerID)
}

// Users lists every participant except selfID. The AI participant is
// materialized first so it always appears in the directory.
func (s *Service) Users(ctx context.Context, selfID string) ([]models.Participant, error) {
	if _, err := s.Responder.Participant(ctx); err != nil {
		log.Warn().Err(err).Msg("AI participant unavailable for directory")
	}
	users, err := s.Storage.ListUsersExcept(ctx, selfID)
	if err != nil {
		return nil, err
	}
	// AI participant first, then by name as returned by the store
	ai := lo.Filter(users, func(p models.Participant, _ int) bool { return p.IsAI })
	humans := lo.Reject(users, func(p models.Participant, _ int) bool { return p.IsAI })
	return append(ai, humans...), nil
}
