package controllers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/config"
	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/utils"
)

const uploadDir = "static/uploads"

// AdminController hosts the content editor: problem CRUD and media uploads.
type AdminController struct {
	db    *gorm.DB
	cache *utils.Cache
}

// NewAdminController wires the admin handlers.
func NewAdminController(db *gorm.DB, cache *utils.Cache) *AdminController {
	return &AdminController{db: db, cache: cache}
}

type problemRequest struct {
	Title              string                `json:"title"`
	QuestionBlocks     []models.ContentBlock `json:"question_blocks"`
	AnswerBlocks       []models.ContentBlock `json:"answer_blocks"`
	BackgroundVideoURL string                `json:"background_video_url"`
	BackgroundMusicURL string                `json:"background_music_url"`
	Effect             string                `json:"effect"`
	IsPublished        bool                  `json:"is_published"`
}

type adminProblem struct {
	ID                 string                `json:"id"`
	Title              string                `json:"title"`
	QuestionBlocks     []models.ContentBlock `json:"question_blocks"`
	AnswerBlocks       []models.ContentBlock `json:"answer_blocks"`
	BackgroundVideoURL string                `json:"background_video_url"`
	BackgroundMusicURL string                `json:"background_music_url"`
	Effect             string                `json:"effect"`
	IsPublished        bool                  `json:"is_published"`
	CreatedBy          *string               `json:"created_by"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func toAdminView(p *models.Problem) (*adminProblem, error) {
	question, err := models.ParseBlocks(p.QuestionBlocks)
	if err != nil {
		return nil, err
	}
	answer, err := models.ParseBlocks(p.AnswerBlocks)
	if err != nil {
		return nil, err
	}
	return &adminProblem{
		ID:                 p.ID,
		Title:              p.Title,
		QuestionBlocks:     question,
		AnswerBlocks:       answer,
		BackgroundVideoURL: p.BackgroundVideoURL,
		BackgroundMusicURL: p.BackgroundMusicURL,
		Effect:             p.Effect,
		IsPublished:        p.IsPublished,
		CreatedBy:          p.CreatedBy,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}, nil
}

// sanitizeBlocks cleans markdown content in place and serializes the list.
func sanitizeBlocks(blocks []models.ContentBlock) (string, error) {
	for i := range blocks {
		if blocks[i].Type == models.BlockMarkdown {
			blocks[i].Content = utils.Sanitize(blocks[i].Content)
		}
	}
	return models.EncodeBlocks(blocks)
}

// CreateProblem validates and stores a new problem.
// POST /api/v1/admin/problems
func (ac *AdminController) CreateProblem(ctx *gin.Context) {
	var req problemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "title is required")
		return
	}
	if req.Effect != "" && !models.ValidEffect(req.Effect) {
		utils.Error(ctx, http.StatusBadRequest, 40032, "unknown effect")
		return
	}
	question, err := sanitizeBlocks(req.QuestionBlocks)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "question_blocks: "+err.Error())
		return
	}
	answer, err := sanitizeBlocks(req.AnswerBlocks)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40034, "answer_blocks: "+err.Error())
		return
	}

	userID := ctx.GetString(middleware.ContextUserID)
	problem := models.Problem{
		Title:              strings.TrimSpace(req.Title),
		QuestionBlocks:     question,
		AnswerBlocks:       answer,
		BackgroundVideoURL: req.BackgroundVideoURL,
		BackgroundMusicURL: req.BackgroundMusicURL,
		Effect:             req.Effect,
		IsPublished:        req.IsPublished,
		CreatedBy:          &userID,
	}
	if err := ac.db.Create(&problem).Error; err != nil {
		utils.Sugar.Errorf("problem create failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create problem")
		return
	}

	view, _ := toAdminView(&problem)
	utils.Success(ctx, view)
}

// ListProblems returns all problems newest-first with simple pagination.
// GET /api/v1/admin/problems?limit=20&offset=0
func (ac *AdminController) ListProblems(ctx *gin.Context) {
	limit := 20
	if raw := ctx.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	offset := 0
	if raw := ctx.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	var total int64
	if err := ac.db.Model(&models.Problem{}).Count(&total).Error; err != nil {
		utils.Sugar.Errorf("problem count failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list problems")
		return
	}

	var rows []models.Problem
	err := ac.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		utils.Sugar.Errorf("problem list failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list problems")
		return
	}

	items := make([]*adminProblem, 0, len(rows))
	for i := range rows {
		view, err := toAdminView(&rows[i])
		if err != nil {
			utils.Sugar.Warnf("skipping problem %s with invalid blocks: %v", rows[i].ID, err)
			continue
		}
		items = append(items, view)
	}

	utils.Success(ctx, gin.H{"problems": items, "total": total})
}

// GetProblem returns a single problem by id.
// GET /api/v1/admin/problems/:id
func (ac *AdminController) GetProblem(ctx *gin.Context) {
	var problem models.Problem
	if err := ac.db.First(&problem, "id = ?", ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "problem not found")
			return
		}
		utils.Sugar.Errorf("problem lookup failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to load problem")
		return
	}
	view, err := toAdminView(&problem)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "stored blocks are invalid")
		return
	}
	utils.Success(ctx, view)
}

// UpdateProblem replaces every editable field.
// PUT /api/v1/admin/problems/:id
func (ac *AdminController) UpdateProblem(ctx *gin.Context) {
	var req problemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "title is required")
		return
	}
	if req.Effect != "" && !models.ValidEffect(req.Effect) {
		utils.Error(ctx, http.StatusBadRequest, 40032, "unknown effect")
		return
	}
	question, err := sanitizeBlocks(req.QuestionBlocks)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "question_blocks: "+err.Error())
		return
	}
	answer, err := sanitizeBlocks(req.AnswerBlocks)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40034, "answer_blocks: "+err.Error())
		return
	}

	var problem models.Problem
	if err := ac.db.First(&problem, "id = ?", ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "problem not found")
			return
		}
		utils.Sugar.Errorf("problem lookup failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to update problem")
		return
	}

	effect := req.Effect
	if effect == "" {
		effect = models.EffectNone
	}
	updates := map[string]interface{}{
		"title":                strings.TrimSpace(req.Title),
		"question_blocks":      question,
		"answer_blocks":        answer,
		"background_video_url": req.BackgroundVideoURL,
		"background_music_url": req.BackgroundMusicURL,
		"effect":               effect,
		"is_published":         req.IsPublished,
		"updated_at":           time.Now(),
	}
	if err := ac.db.Model(&problem).Updates(updates).Error; err != nil {
		utils.Sugar.Errorf("problem update failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to update problem")
		return
	}

	ac.cache.InvalidateByPrefix("cache:share:")

	if err := ac.db.First(&problem, "id = ?", problem.ID).Error; err == nil {
		if view, err := toAdminView(&problem); err == nil {
			utils.Success(ctx, view)
			return
		}
	}
	utils.Success(ctx, nil)
}

type problemPatch struct {
	Title              *string                `json:"title"`
	QuestionBlocks     *[]models.ContentBlock `json:"question_blocks"`
	AnswerBlocks       *[]models.ContentBlock `json:"answer_blocks"`
	BackgroundVideoURL *string                `json:"background_video_url"`
	BackgroundMusicURL *string                `json:"background_music_url"`
	Effect             *string                `json:"effect"`
	IsPublished        *bool                  `json:"is_published"`
}

// PatchProblem applies a partial update. Only the fields above are editable;
// anything else in the body is ignored.
// PATCH /api/v1/admin/problems/:id
func (ac *AdminController) PatchProblem(ctx *gin.Context) {
	var req problemPatch
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request body")
		return
	}

	var problem models.Problem
	if err := ac.db.First(&problem, "id = ?", ctx.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "problem not found")
			return
		}
		utils.Sugar.Errorf("problem lookup failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to update problem")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			utils.Error(ctx, http.StatusBadRequest, 40031, "title is required")
			return
		}
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.QuestionBlocks != nil {
		encoded, err := sanitizeBlocks(*req.QuestionBlocks)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40033, "question_blocks: "+err.Error())
			return
		}
		updates["question_blocks"] = encoded
	}
	if req.AnswerBlocks != nil {
		encoded, err := sanitizeBlocks(*req.AnswerBlocks)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40034, "answer_blocks: "+err.Error())
			return
		}
		updates["answer_blocks"] = encoded
	}
	if req.BackgroundVideoURL != nil {
		updates["background_video_url"] = *req.BackgroundVideoURL
	}
	if req.BackgroundMusicURL != nil {
		updates["background_music_url"] = *req.BackgroundMusicURL
	}
	if req.Effect != nil {
		if !models.ValidEffect(*req.Effect) {
			utils.Error(ctx, http.StatusBadRequest, 40032, "unknown effect")
			return
		}
		updates["effect"] = *req.Effect
	}
	if req.IsPublished != nil {
		updates["is_published"] = *req.IsPublished
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40035, "no editable fields in request")
		return
	}
	updates["updated_at"] = time.Now()

	if err := ac.db.Model(&problem).Updates(updates).Error; err != nil {
		utils.Sugar.Errorf("problem patch failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to update problem")
		return
	}

	ac.cache.InvalidateByPrefix("cache:share:")

	if err := ac.db.First(&problem, "id = ?", problem.ID).Error; err == nil {
		if view, err := toAdminView(&problem); err == nil {
			utils.Success(ctx, view)
			return
		}
	}
	utils.Success(ctx, nil)
}

// DeleteProblem removes a problem; interactions cascade at the database level.
// DELETE /api/v1/admin/problems/:id
func (ac *AdminController) DeleteProblem(ctx *gin.Context) {
	res := ac.db.Delete(&models.Problem{}, "id = ?", ctx.Param("id"))
	if res.Error != nil {
		utils.Sugar.Errorf("problem delete failed: %v", res.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to delete problem")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40404, "problem not found")
		return
	}

	ac.cache.InvalidateByPrefix("cache:share:")
	ac.cache.InvalidateByPrefix("cache:leaderboard:")

	utils.Success(ctx, gin.H{"deleted": true})
}

var uploadTypes = map[string]string{
	".mp4":  "video",
	".webm": "video",
	".mov":  "video",
	".mp3":  "audio",
	".wav":  "audio",
	".ogg":  "audio",
	".png":  "image",
	".jpg":  "image",
	".jpeg": "image",
	".gif":  "image",
	".webp": "image",
}

// Upload stores a media file and records it for the orphan cleaner. Files not
// linked to a problem before their TTL expires are removed.
// POST /api/v1/admin/upload
func (ac *AdminController) Upload(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40036, "file field is required")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	fileType, ok := uploadTypes[ext]
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40037, "unsupported file type")
		return
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(uploadDir, name)
	if err := ctx.SaveUploadedFile(file, dst); err != nil {
		utils.Sugar.Errorf("upload save failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to store file")
		return
	}

	cfg := config.Get()
	userID := ctx.GetString(middleware.ContextUserID)
	media := models.MediaFile{
		StorageURL:  "/" + uploadDir + "/" + name,
		StoragePath: dst,
		FileType:    fileType,
		UploadedBy:  &userID,
		ExpireAt:    time.Now().Add(time.Duration(cfg.MediaTTLMinutes) * time.Minute),
		UploadedAt:  time.Now(),
	}
	if err := ac.db.Create(&media).Error; err != nil {
		utils.Sugar.Errorf("upload record failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50036, "failed to store file")
		return
	}

	utils.Success(ctx, gin.H{
		"id":        media.ID,
		"url":       media.StorageURL,
		"file_type": media.FileType,
		"expire_at": media.ExpireAt,
	})
}
