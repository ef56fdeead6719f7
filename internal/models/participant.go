package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant is a chat identity. At most one row has IsAI set; the partial
// unique index enforces it at the store level.
type Participant struct {
	ID         string    `gorm:"primaryKey" json:"_id"`
	FullName   string    `gorm:"type:text;not null" json:"fullName"`
	Email      string    `gorm:"uniqueIndex" json:"email"`
	ProfilePic string    `gorm:"type:text" json:"profilePic"`
	IsAI       bool      `gorm:"not null;default:false;uniqueIndex:idx_single_ai,where:is_ai = true" json:"isAI"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BeforeCreate assigns a UUID when the ID is not set yet.
func (p *Participant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}
