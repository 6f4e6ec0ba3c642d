package main

import (
	"log"
	"time"

	"github.com/tiltlabs/tilt-backend/config"
	"github.com/tiltlabs/tilt-backend/models"
	"github.com/tiltlabs/tilt-backend/routes"
	"github.com/tiltlabs/tilt-backend/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() {
		_ = utils.Logger.Sync()
	}()

	db := config.InitDatabase(
		&models.Profile{},
		&models.Problem{},
		&models.Interaction{},
		&models.DailyStat{},
		&models.Share{},
		&models.MediaFile{},
	)

	cache := utils.NewCache(utils.GetRedis())

	utils.StartMediaCleaner(db, time.Duration(cfg.MediaCleanupMins)*time.Minute)

	router := routes.SetupRouter(db, cache)

	utils.Sugar.Infof("listening on :%s", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, router); err != nil {
		utils.Sugar.Warnf("server exited: %v", err)
	}
}
