package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Visual effects a problem can request from the client.
const (
	EffectNone     = "none"
	EffectJitter   = "jitter"
	EffectConfetti = "confetti"
)

// ValidEffect reports whether s names a known effect tag.
func ValidEffect(s string) bool {
	switch s {
	case EffectNone, EffectJitter, EffectConfetti:
		return true
	}
	return false
}

// Problem is an authored content item: a title plus two ordered block lists
// (question and answer) with optional background media. Block lists are stored
// as serialized JSON text and parsed on read.
type Problem struct {
	ID                 string     `gorm:"type:char(36);primaryKey" json:"id"`
	Title              string     `gorm:"size:255;not null" json:"title"`
	QuestionBlocks     string     `gorm:"type:text;not null" json:"-"`
	AnswerBlocks       string     `gorm:"type:text;not null" json:"-"`
	BackgroundVideoURL string     `gorm:"size:512" json:"background_video_url"`
	BackgroundMusicURL string     `gorm:"size:512" json:"background_music_url"`
	Effect             string     `gorm:"size:16;not null;default:'none'" json:"effect"`
	IsPublished        bool       `gorm:"not null;default:false" json:"is_published"`
	CreatedBy          *string    `gorm:"type:char(36)" json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Interactions       []Interaction `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// BeforeCreate assigns a uuid primary key and defaults.
func (p *Problem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Effect == "" {
		p.Effect = EffectNone
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the UpdatedAt timestamp.
func (p *Problem) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}
