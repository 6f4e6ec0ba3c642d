package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Share outcome statuses.
const (
	ShareSolvedFast = "solved_fast"
	ShareSolved     = "solved"
	ShareGaveUp     = "gave_up"
	ShareUnsolved   = "unsolved"
)

// Share is an immutable point-in-time snapshot of an interaction's outcome
// with an auto-generated message for social previews.
type Share struct {
	ID            string    `gorm:"type:char(36);primaryKey" json:"id"`
	ShareCode     string    `gorm:"size:21;not null;uniqueIndex" json:"share_code"`
	InteractionID string    `gorm:"type:char(36);not null" json:"interaction_id"`
	Status        string    `gorm:"size:16;not null" json:"status"`
	ShareMessage  string    `gorm:"size:512" json:"share_message"`
	CreatedAt     time.Time `json:"created_at"`
}

// BeforeCreate assigns a uuid primary key and timestamp.
func (s *Share) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return nil
}
