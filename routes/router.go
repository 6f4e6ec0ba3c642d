package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/config"
	"github.com/tiltlabs/tilt-backend/controllers"
	"github.com/tiltlabs/tilt-backend/middleware"
	"github.com/tiltlabs/tilt-backend/utils"
)

// SetupRouter assembles the gin engine with middleware and all route groups.
func SetupRouter(db *gorm.DB, cache *utils.Cache) *gin.Engine {
	cfg := config.Get()

	gin.SetMode(cfg.GinMode)
	router := gin.New()

	accessLogger, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel,
		cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		accessLogger = zap.NewNop()
	}
	router.Use(utils.Ginzap(accessLogger, time.RFC3339, true))
	router.Use(utils.RecoveryWithZap(accessLogger, true))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.Static("/static", "./static")

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	feedController := controllers.NewFeedController(db, cache, controllers.RandomSelector{})
	statsController := controllers.NewStatsController(db, cache)
	adminController := controllers.NewAdminController(db, cache)
	shareController := controllers.NewShareController(db, cache)

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.GET("/me", middleware.AuthRequired(), authController.Me)
		auth.POST("/logout", middleware.AuthRequired(), authController.Logout)
		auth.GET("/:provider", authController.OAuthRedirect)
		auth.GET("/:provider/callback", authController.OAuthCallback)
	}

	problems := v1.Group("/problems")
	problems.Use(middleware.AuthRequired())
	{
		problems.GET("", feedController.GetFeed)
		problems.POST("/reaction", middleware.RateLimit(cfg.RateLimitPerMinute), feedController.SetReaction)
		problems.POST("/solved", middleware.RateLimit(cfg.RateLimitPerMinute), feedController.SetSolved)
		problems.POST("/share", middleware.RateLimit(cfg.RateLimitPerMinute), shareController.CreateShare)
	}

	stats := v1.Group("/stats")
	stats.Use(middleware.AuthRequired())
	{
		stats.GET("/me", statsController.GetMyStats)
		stats.GET("/leaderboard", statsController.GetLeaderboard)
	}

	v1.GET("/share/:code", shareController.GetShare)

	admin := v1.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired(db))
	{
		admin.POST("/problems", adminController.CreateProblem)
		admin.GET("/problems", adminController.ListProblems)
		admin.GET("/problems/:id", adminController.GetProblem)
		admin.PUT("/problems/:id", adminController.UpdateProblem)
		admin.PATCH("/problems/:id", adminController.PatchProblem)
		admin.DELETE("/problems/:id", adminController.DeleteProblem)
		admin.POST("/upload", adminController.Upload)
	}

	router.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return router
}
