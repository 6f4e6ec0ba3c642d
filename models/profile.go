package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles assignable to a profile.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Profile mirrors an externally authenticated identity into an application-owned
// user record. The ID is shared with the identity provider where one exists.
type Profile struct {
	ID         string        `gorm:"type:char(36);primaryKey" json:"id"`
	Email      string        `gorm:"size:255;not null" json:"email"`
	Name       string        `gorm:"size:255" json:"name"`
	AvatarURL  string        `gorm:"size:512" json:"avatar_url"`
	Role       string        `gorm:"size:16;not null;default:'user'" json:"role"`
	Provider   string        `gorm:"size:32" json:"provider"`
	ProviderID string        `gorm:"size:255" json:"provider_id"`
	PasswordHash string      `gorm:"size:255" json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Problems   []Problem     `gorm:"foreignKey:CreatedBy" json:"-"`
	Interactions []Interaction `gorm:"foreignKey:UserID" json:"-"`
}

// BeforeCreate assigns a uuid primary key and timestamps when not provided.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = RoleUser
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the UpdatedAt timestamp.
func (p *Profile) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = time.Now()
	return nil
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
