package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the calendar-date format used for daily stat rows.
const DateLayout = "2006-01-02"

// DailyStat is the per (user, date) activity aggregate. It is a derived cache
// over the interaction table, maintained incrementally; the streak is fixed at
// row creation time and never recomputed retroactively.
type DailyStat struct {
	ID                string `gorm:"type:char(36);primaryKey" json:"id"`
	UserID            string `gorm:"type:char(36);not null;uniqueIndex:idx_daily_stats_user_date" json:"user_id"`
	Date              string `gorm:"size:10;not null;uniqueIndex:idx_daily_stats_user_date" json:"date"`
	ProblemsAttempted int    `gorm:"not null;default:0" json:"problems_attempted"`
	ProblemsSolved    int    `gorm:"not null;default:0" json:"problems_solved"`
	Streak            int    `gorm:"not null;default:0" json:"streak"`
}

// BeforeCreate assigns a uuid primary key.
func (d *DailyStat) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Today returns the current local calendar date in DateLayout.
func Today() string {
	return time.Now().Format(DateLayout)
}

// Yesterday returns the calendar date immediately before date, or "" when the
// input does not parse.
func Yesterday(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DateLayout)
}
