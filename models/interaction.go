package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reactions a user can record against a problem.
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Interaction records one user's encounter with one problem. Exactly one row
// exists per (user, problem) pair, created lazily when the problem is first
// served; the VisibleID is the short public share code.
type Interaction struct {
	ID               string     `gorm:"type:char(36);primaryKey" json:"id"`
	VisibleID        string     `gorm:"size:21;not null;uniqueIndex" json:"visible_id"`
	UserID           string     `gorm:"type:char(36);not null;uniqueIndex:idx_interactions_user_problem" json:"user_id"`
	ProblemID        string     `gorm:"type:char(36);not null;uniqueIndex:idx_interactions_user_problem" json:"problem_id"`
	Reaction         *string    `gorm:"size:16" json:"reaction"`
	Solved           bool       `gorm:"not null;default:false" json:"solved"`
	StartedAt        time.Time  `gorm:"not null" json:"started_at"`
	SolvedAt         *time.Time `json:"solved_at"`
	TimeSpentSeconds int        `gorm:"not null;default:0" json:"time_spent_seconds"`
}

// BeforeCreate assigns a uuid primary key and start timestamp.
func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.StartedAt.IsZero() {
		i.StartedAt = time.Now()
	}
	return nil
}
