package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

const (
	shareCacheTTL   = 5 * time.Minute
	fastSolveCutoff = 60 // seconds
)

// ShareController creates share snapshots and resolves public share links.
type ShareController struct {
	db    *gorm.DB
	cache *utils.Cache
}

// NewShareController wires the share handlers.
func NewShareController(db *gorm.DB, cache *utils.Cache) *ShareController {
	return &ShareController{db: db, cache: cache}
}

type shareRequest struct {
	InteractionID string `json:"interaction_id" binding:"required"`
	GaveUp        bool   `json:"gave_up"`
}

// shareStatus derives the snapshot status from the interaction outcome. The
// gave-up case cannot be inferred from storage (revealing the answer is a
// client-side event), so the caller reports it.
func shareStatus(inter *models.Interaction, gaveUp bool) string {
	switch {
	case inter.Solved && inter.TimeSpentSeconds < fastSolveCutoff:
		return models.ShareSolvedFast
	case inter.Solved:
		return models.ShareSolved
	case gaveUp:
		return models.ShareGaveUp
	default:
		return models.ShareUnsolved
	}
}

func shareMessage(status, title string) string {
	switch status {
	case models.ShareSolvedFast, models.ShareSolved:
		return fmt.Sprintf("I just solved %q on Tilt! Can you beat my time?", title)
	default:
		return "This problem on Tilt has me stumped! Think you can solve it?"
	}
}

// CreateShare snapshots the caller's interaction outcome under a fresh code.
// POST /api/v1/problems/share
func (sc *ShareController) CreateShare(ctx *gin.Context) {
	var req shareRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request body")
		return
	}

	userID := ctx.GetString(middleware.ContextUserID)

	var inter models.Interaction
	err := sc.db.First(&inter, "id = ?", req.InteractionID).Error
	if err != nil || inter.UserID != userID {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Sugar.Errorf("share interaction lookup failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create share")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40402, "interaction not found")
		return
	}

	var problem models.Problem
	if err := sc.db.First(&problem, "id = ?", inter.ProblemID).Error; err != nil {
		utils.Sugar.Errorf("share problem lookup failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create share")
		return
	}

	status := shareStatus(&inter, req.GaveUp)
	share := models.Share{
		ShareCode:     utils.NewShareCode(),
		InteractionID: inter.ID,
		Status:        status,
		ShareMessage:  shareMessage(status, problem.Title),
	}
	if err := sc.db.Create(&share).Error; err != nil {
		utils.Sugar.Errorf("share create failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to create share")
		return
	}

	utils.Success(ctx, gin.H{
		"share_code":    share.ShareCode,
		"visible_id":    inter.VisibleID,
		"status":        share.Status,
		"share_message": share.ShareMessage,
	})
}

type shareView struct {
	Title          string                `json:"title"`
	QuestionBlocks []models.ContentBlock `json:"question_blocks"`
	Solved         bool                  `json:"solved"`
	TimeSpent      int                   `json:"time_spent_seconds"`
	Status         string                `json:"status,omitempty"`
	Message        string                `json:"message,omitempty"`
	SharerName     string                `json:"sharer_name"`
	SharerAvatar   string                `json:"sharer_avatar"`
}

// GetShare resolves a public share link. The code is either an interaction's
// visible id (live view) or a snapshot's share code.
// GET /api/v1/share/:code
func (sc *ShareController) GetShare(ctx *gin.Context) {
	code := ctx.Param("code")
	if code == "" {
		utils.Error(ctx, http.StatusNotFound, 40403, "share not found")
		return
	}

	cacheKey := "cache:share:" + code
	if b, ok := sc.cache.GetBytes(cacheKey); ok {
		var cached shareView
		if json.Unmarshal(b, &cached) == nil {
			utils.Success(ctx, cached)
			return
		}
	}

	var inter models.Interaction
	var snapshot *models.Share
	if err := sc.db.First(&inter, "visible_id = ?", code).Error; err != nil {
		var share models.Share
		if err := sc.db.First(&share, "share_code = ?", code).Error; err != nil {
			utils.Error(ctx, http.StatusNotFound, 40403, "share not found")
			return
		}
		snapshot = &share
		if err := sc.db.First(&inter, "id = ?", share.InteractionID).Error; err != nil {
			utils.Error(ctx, http.StatusNotFound, 40403, "share not found")
			return
		}
	}

	var problem models.Problem
	if err := sc.db.First(&problem, "id = ? AND is_published = ?", inter.ProblemID, true).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40403, "share not found")
		return
	}
	question, err := models.ParseBlocks(problem.QuestionBlocks)
	if err != nil {
		utils.Sugar.Errorf("share blocks parse failed problem=%s: %v", problem.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load share")
		return
	}

	var sharer models.Profile
	_ = sc.db.First(&sharer, "id = ?", inter.UserID).Error

	view := shareView{
		Title:          problem.Title,
		QuestionBlocks: question,
		Solved:         inter.Solved,
		TimeSpent:      inter.TimeSpentSeconds,
		SharerName:     sharer.Name,
		SharerAvatar:   sharer.AvatarURL,
	}
	if snapshot != nil {
		view.Status = snapshot.Status
		view.Message = snapshot.ShareMessage
	}

	sc.cache.SetJSON(cacheKey, view, shareCacheTTL)
	utils.Success(ctx, view)
}
