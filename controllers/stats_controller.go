package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

const leaderboardCacheTTL = time.Minute

// StatsController serves personal daily stats and the global leaderboard.
type StatsController struct {
	db    *gorm.DB
	cache *utils.Cache
}

// NewStatsController wires the stats handlers.
func NewStatsController(db *gorm.DB, cache *utils.Cache) *StatsController {
	return &StatsController{db: db, cache: cache}
}

// GetMyStats returns today's counters, the caller's current streak, lifetime
// totals and a short history window.
// GET /api/v1/stats/me
func (sc *StatsController) GetMyStats(ctx *gin.Context) {
	userID := ctx.GetString(middleware.ContextUserID)
	today := models.Today()

	// Zero values stand in when today has no row yet
	var todayRow models.DailyStat
	sc.db.Where("user_id = ? AND date = ?", userID, today).First(&todayRow)

	var totalSolved, totalAttempted int64
	if err := sc.db.Model(&models.Interaction{}).
		Where("user_id = ? AND solved = ?", userID, true).
		Count(&totalSolved).Error; err != nil {
		utils.Sugar.Errorf("stats total solved failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load stats")
		return
	}
	if err := sc.db.Model(&models.Interaction{}).
		Where("user_id = ?", userID).
		Count(&totalAttempted).Error; err != nil {
		utils.Sugar.Errorf("stats total attempted failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load stats")
		return
	}

	var history []models.DailyStat
	if err := sc.db.Where("user_id = ?", userID).
		Order("date DESC").
		Limit(7).
		Find(&history).Error; err != nil {
		utils.Sugar.Errorf("stats history failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to load stats")
		return
	}

	utils.Success(ctx, gin.H{
		"today": gin.H{
			"date":               today,
			"problems_attempted": todayRow.ProblemsAttempted,
			"problems_solved":    todayRow.ProblemsSolved,
		},
		"streak":          todayRow.Streak,
		"total_solved":    totalSolved,
		"total_attempted": totalAttempted,
		"history":         history,
	})
}

type leaderboardEntry struct {
	Rank        int    `json:"rank" gorm:"-"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	TotalSolved int    `json:"total_solved"`
}

// GetLeaderboard ranks users by lifetime solved count, ties broken by profile
// id so the order is stable across requests. Results are cached briefly.
// GET /api/v1/stats/leaderboard?limit=10
func (sc *StatsController) GetLeaderboard(ctx *gin.Context) {
	limit := 10
	if raw := ctx.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			utils.Error(ctx, http.StatusBadRequest, 40010, "limit must be a positive integer")
			return
		}
		limit = v
	}
	if limit > 100 {
		limit = 100
	}

	cacheKey := fmt.Sprintf("cache:leaderboard:%d", limit)
	if b, ok := sc.cache.GetBytes(cacheKey); ok {
		var cached []leaderboardEntry
		if json.Unmarshal(b, &cached) == nil {
			utils.Success(ctx, gin.H{"leaderboard": cached})
			return
		}
	}

	var entries []leaderboardEntry
	err := sc.db.Table("profiles").
		Select("profiles.id AS user_id, profiles.name, profiles.avatar_url, COUNT(interactions.id) AS total_solved").
		Joins("LEFT JOIN interactions ON interactions.user_id = profiles.id AND interactions.solved = ?", true).
		Group("profiles.id, profiles.name, profiles.avatar_url").
		Order("total_solved DESC, profiles.id ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		utils.Sugar.Errorf("leaderboard query failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load leaderboard")
		return
	}

	for i := range entries {
		entries[i].Rank = i + 1
	}

	sc.cache.SetJSON(cacheKey, entries, leaderboardCacheTTL)
	utils.Success(ctx, gin.H{"leaderboard": entries})
}
