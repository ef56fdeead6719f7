package storage

import (
	"context"

	"pairchat/backend/internal/apperr"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/models"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Storage is the durable store consumed by the relay pipeline. A message is
// acknowledged only after SaveMessage returns nil.
type Storage interface {
	SaveUser(ctx context.Context, user *models.Participant) error
	GetUserByID(ctx context.Context, id string) (*models.Participant, error)
	ListUsersExcept(ctx context.Context, id string) ([]models.Participant, error)
	GetOrCreateAIUser(ctx context.Context) (*models.Participant, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	GetConversation(ctx context.Context, userA, userB string) ([]models.Message, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. rdb may be nil when the delivery bus is disabled.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// SaveUser creates or updates a participant.
func (s *Service) SaveUser(ctx context.Context, user *models.Participant) error {
	if err := s.DB.WithContext(ctx).Save(user).Error; err != nil {
		return classify(err, "save participant")
	}
	return nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.Participant, error) {
	var user models.Participant
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, classify(err, "participant "+id)
	}
	return &user, nil
}

// ListUsersExcept returns every participant other than id, ordered by name.
func (s *Service) ListUsersExcept(ctx context.Context, id string) ([]models.Participant, error) {
	var users []models.Participant
	if err := s.DB.WithContext(ctx).
		Where("id <> ?", id).
		Order("full_name asc").
		Find(&users).Error; err != nil {
		return nil, classify(err, "list participants")
	}
	return users, nil
}

// GetOrCreateAIUser finds the synthetic participant or creates it. Two racing
// creators are resolved by the idx_single_ai unique index: the loser reads
// back the winner's row.
func (s *Service) GetOrCreateAIUser(ctx context.Context) (*models.Participant, error) {
	db := s.DB.WithContext(ctx)

	var ai models.Participant
	err := db.Where("is_ai = ?", true).First(&ai).Error
	if err == nil {
		return &ai, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, classify(err, "find AI participant")
	}

	ai = models.Participant{
		FullName:   config.AIFullName,
		Email:      config.AIEmail,
		ProfilePic: config.AIProfilePic,
		IsAI:       true,
	}
	if err := db.Create(&ai).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, classify(err, "create AI participant")
		}
		var existing models.Participant
		if err := db.Where("is_ai = ?", true).First(&existing).Error; err != nil {
			return nil, classify(err, "reload AI participant")
		}
		return &existing, nil
	}

	log.Info().Str("user_id", ai.ID).Msg("AI participant created")
	return &ai, nil
}

// SaveMessage appends msg and fills in its ID and CreatedAt.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Error().Err(err).Str("recipient_id", msg.RecipientID).Msg("failed to save message")
		return classify(err, "save message")
	}
	return nil
}

// GetConversation returns the messages exchanged between two participants in
// ascending creation order.
func (s *Service) GetConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.DB.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userA, userB, userB, userA).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, classify(err, "conversation history")
	}
	return messages, nil
}

// classify maps gorm failures onto the apperr taxonomy.
func classify(err error, what string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(apperr.ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrapf(apperr.ErrInvalid, "%s: duplicate", what)
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(apperr.ErrTimeout, what)
	default:
		return errors.Wrapf(apperr.ErrUnavailable, "%s: %v", what, err)
	}
}
