package controllers

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tiltlabs/tilt-backend/models"
)

// yesterdayStreak returns the streak recorded for the day before date, zero
// when no row exists.
func yesterdayStreak(db *gorm.DB, userID, date string) int {
	prev := models.Yesterday(date)
	if prev == "" {
		return 0
	}
	var row models.DailyStat
	if err := db.Where("user_id = ? AND date = ?", userID, prev).First(&row).Error; err != nil {
		return 0
	}
	return row.Streak
}

// bumpAttempted increments today's attempted counter, creating the row when it
// is the user's first attempt of the day. The streak is computed once at row
// creation: yesterday's streak plus one, or one after a gap.
func bumpAttempted(db *gorm.DB, userID string) error {
	date := models.Today()
	row := models.DailyStat{
		UserID:            userID,
		Date:              date,
		ProblemsAttempted: 1,
		Streak:            yesterdayStreak(db, userID, date) + 1,
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"problems_attempted": gorm.Expr("problems_attempted + 1"),
		}),
	}).Create(&row).Error
}

// bumpSolved adjusts today's solved counter by delta, clamped at zero. An
// unsolve on a later day must not drive the counter negative, so the clamp is
// applied in Go after reading the current row. Only a solve may create today's
// row; an unsolve against a day with no activity is a no-op, otherwise the
// phantom row would count as streak activity.
func bumpSolved(db *gorm.DB, userID string, delta int) error {
	date := models.Today()
	if delta > 0 {
		row := models.DailyStat{
			UserID: userID,
			Date:   date,
			Streak: yesterdayStreak(db, userID, date) + 1,
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			return err
		}
	}

	var current models.DailyStat
	if err := db.Where("user_id = ? AND date = ?", userID, date).First(&current).Error; err != nil {
		if delta < 0 && errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	next := current.ProblemsSolved + delta
	if next < 0 {
		next = 0
	}
	if next == current.ProblemsSolved {
		return nil
	}
	return db.Model(&models.DailyStat{}).
		Where("id = ?", current.ID).
		Update("problems_solved", next).Error
}
