package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one immutable direct message between two participants.
// Image is an opaque reference (URL) produced by the asset collaborator.
type Message struct {
	ID          string    `gorm:"primaryKey" json:"_id"`
	SenderID    string    `gorm:"type:text;not null;index:idx_conversation" json:"senderId"`
	RecipientID string    `gorm:"type:text;not null;index:idx_conversation" json:"receiverId"`
	Text        string    `gorm:"type:text" json:"text,omitempty"`
	Image       string    `gorm:"type:text" json:"image,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

// BeforeCreate assigns a UUID when the ID is not set yet.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// IsEmpty reports whether the message carries neither text nor an image.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.Image) == ""
}
