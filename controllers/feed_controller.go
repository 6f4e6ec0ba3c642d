package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tiltlabs/tilt-backend/config"
	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

// FeedController serves the infinite-scroll problem feed and the per-problem
// interaction endpoints.
type FeedController struct {
	db       *gorm.DB
	cache    *utils.Cache
	selector ProblemSelector
}

// NewFeedController wires the feed handlers.
func NewFeedController(db *gorm.DB, cache *utils.Cache, selector ProblemSelector) *FeedController {
	if selector == nil {
		selector = RandomSelector{}
	}
	return &FeedController{db: db, cache: cache, selector: selector}
}

type feedInteraction struct {
	ID               string  `json:"id"`
	VisibleID        string  `json:"visible_id"`
	Reaction         *string `json:"reaction"`
	Solved           bool    `json:"solved"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
}

type feedProblem struct {
	ID                 string                `json:"id"`
	Title              string                `json:"title"`
	QuestionBlocks     []models.ContentBlock `json:"question_blocks"`
	AnswerBlocks       []models.ContentBlock `json:"answer_blocks"`
	BackgroundVideoURL string                `json:"background_video_url"`
	BackgroundMusicURL string                `json:"background_music_url"`
	Effect             string                `json:"effect"`
	Interaction        feedInteraction       `json:"interaction"`
}

// GetFeed returns up to limit random published problems the caller has not
// excluded, creating an interaction row per served problem on first sight.
// GET /api/v1/problems?limit=5&exclude=id1,id2
func (fc *FeedController) GetFeed(ctx *gin.Context) {
	cfg := config.Get()
	userID := ctx.GetString(middleware.ContextUserID)

	limit := cfg.FeedDefaultLimit
	if raw := ctx.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			utils.Error(ctx, http.StatusBadRequest, 40001, "limit must be a positive integer")
			return
		}
		limit = v
	}
	if limit > cfg.FeedMaxLimit {
		limit = cfg.FeedMaxLimit
	}

	var exclude []string
	if raw := ctx.Query("exclude"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				exclude = append(exclude, id)
			}
		}
	}

	problems, err := fc.selector.Select(fc.db, exclude, limit)
	if err != nil {
		utils.Sugar.Errorf("feed select failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to load feed")
		return
	}

	items := make([]feedProblem, 0, len(problems))
	for _, p := range problems {
		inter, err := fc.ensureInteraction(userID, p.ID)
		if err != nil {
			utils.Sugar.Errorf("interaction upsert failed problem=%s: %v", p.ID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to load feed")
			return
		}

		question, err := models.ParseBlocks(p.QuestionBlocks)
		if err != nil {
			utils.Sugar.Warnf("skipping problem %s with invalid question blocks: %v", p.ID, err)
			continue
		}
		answer, err := models.ParseBlocks(p.AnswerBlocks)
		if err != nil {
			utils.Sugar.Warnf("skipping problem %s with invalid answer blocks: %v", p.ID, err)
			continue
		}

		items = append(items, feedProblem{
			ID:                 p.ID,
			Title:              p.Title,
			QuestionBlocks:     question,
			AnswerBlocks:       answer,
			BackgroundVideoURL: p.BackgroundVideoURL,
			BackgroundMusicURL: p.BackgroundMusicURL,
			Effect:             p.Effect,
			Interaction: feedInteraction{
				ID:               inter.ID,
				VisibleID:        inter.VisibleID,
				Reaction:         inter.Reaction,
				Solved:           inter.Solved,
				TimeSpentSeconds: inter.TimeSpentSeconds,
			},
		})
	}

	utils.Success(ctx, gin.H{"problems": items})
}

// ensureInteraction creates the (user, problem) interaction row if missing and
// returns the authoritative row. Creation also counts one attempt toward
// today's stats; a concurrent duplicate insert loses the conflict race and
// counts nothing.
func (fc *FeedController) ensureInteraction(userID, problemID string) (*models.Interaction, error) {
	row := models.Interaction{
		UserID:    userID,
		ProblemID: problemID,
		VisibleID: utils.NewVisibleID(),
	}
	res := fc.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "problem_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		if err := bumpAttempted(fc.db, userID); err != nil {
			utils.Sugar.Warnf("attempt counter update failed user=%s: %v", userID, err)
		}
	}

	var out models.Interaction
	err := fc.db.Where("user_id = ? AND problem_id = ?", userID, problemID).First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ownedInteraction loads an interaction and verifies the caller owns it.
// Not-found and not-owned are indistinguishable to the caller.
func (fc *FeedController) ownedInteraction(ctx *gin.Context, interactionID string) (*models.Interaction, bool) {
	userID := ctx.GetString(middleware.ContextUserID)

	var row models.Interaction
	err := fc.db.First(&row, "id = ?", interactionID).Error
	if err != nil || row.UserID != userID {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Sugar.Errorf("interaction lookup failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to load interaction")
			return nil, false
		}
		utils.Error(ctx, http.StatusNotFound, 40401, "interaction not found")
		return nil, false
	}
	return &row, true
}

type reactionRequest struct {
	InteractionID string  `json:"interaction_id" binding:"required"`
	Reaction      *string `json:"reaction"`
}

// SetReaction records, changes or clears the caller's reaction.
// POST /api/v1/problems/reaction
func (fc *FeedController) SetReaction(ctx *gin.Context) {
	var req reactionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid request body")
		return
	}
	if req.Reaction != nil && *req.Reaction != models.ReactionLike && *req.Reaction != models.ReactionDislike {
		utils.Error(ctx, http.StatusBadRequest, 40003, "reaction must be like, dislike or null")
		return
	}

	row, ok := fc.ownedInteraction(ctx, req.InteractionID)
	if !ok {
		return
	}

	if err := fc.db.Model(row).Update("reaction", req.Reaction).Error; err != nil {
		utils.Sugar.Errorf("reaction update failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to save reaction")
		return
	}

	utils.Success(ctx, gin.H{"interaction_id": row.ID, "reaction": req.Reaction})
}

type solvedRequest struct {
	InteractionID string `json:"interaction_id" binding:"required"`
	Solved        *bool  `json:"solved" binding:"required"`
}

// SetSolved toggles the solved flag. Solving stamps the solve time and the
// elapsed seconds since the problem was first served; unsolving clears both.
// Repeating the current state is a no-op.
// POST /api/v1/problems/solved
func (fc *FeedController) SetSolved(ctx *gin.Context) {
	var req solvedRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request body")
		return
	}

	row, ok := fc.ownedInteraction(ctx, req.InteractionID)
	if !ok {
		return
	}

	userID := ctx.GetString(middleware.ContextUserID)
	want := *req.Solved

	if want == row.Solved {
		utils.Success(ctx, gin.H{
			"success":            true,
			"solved":             row.Solved,
			"time_spent_seconds": row.TimeSpentSeconds,
		})
		return
	}

	updates := map[string]interface{}{"solved": want}
	delta := -1
	if want {
		now := time.Now()
		elapsed := int(now.Sub(row.StartedAt).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		updates["solved_at"] = now
		updates["time_spent_seconds"] = elapsed
		row.TimeSpentSeconds = elapsed
		delta = 1
	} else {
		updates["solved_at"] = nil
		updates["time_spent_seconds"] = 0
		row.TimeSpentSeconds = 0
	}

	if err := fc.db.Model(row).Updates(updates).Error; err != nil {
		utils.Sugar.Errorf("solved update failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to save progress")
		return
	}

	// Stats are a derived cache; a failed bump must not fail the toggle
	if err := bumpSolved(fc.db, userID, delta); err != nil {
		utils.Sugar.Warnf("solved counter update failed user=%s: %v", userID, err)
	}

	fc.cache.InvalidateByPrefix("cache:leaderboard:")

	utils.Success(ctx, gin.H{
		"success":            true,
		"solved":             want,
		"time_spent_seconds": row.TimeSpentSeconds,
	})
}
