package controllers

import (
	"math/rand"

	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/models"
)

// ProblemSelector picks the next batch of published problems for a user's
// feed. Implementations must never return a problem whose id appears in
// exclude, and must never return unpublished problems.
type ProblemSelector interface {
	Select(db *gorm.DB, exclude []string, limit int) ([]models.Problem, error)
}

// RandomSelector shuffles the eligible pool in memory. Selecting ids first
// keeps the shuffle off the database, so it behaves the same on every SQL
// dialect and the pool stays cheap to load even with large block payloads.
type RandomSelector struct{}

// Select returns up to limit random published problems not in exclude.
func (RandomSelector) Select(db *gorm.DB, exclude []string, limit int) ([]models.Problem, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := db.Model(&models.Problem{}).Where("is_published = ?", true)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	var rows []models.Problem
	if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	// Restore the shuffled order lost by IN lookup
	byID := make(map[string]models.Problem, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	out := make([]models.Problem, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
