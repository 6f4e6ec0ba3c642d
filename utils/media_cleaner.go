package utils

import (
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/tiltlabs/tilt-backend/models"
)

// StartMediaCleaner launches a background goroutine that periodically deletes
// expired media files that were never attached to a problem. Best-effort; each
// failure is logged and the sweep continues.
func StartMediaCleaner(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)

			var items []models.MediaFile
			err := db.Where("problem_id IS NULL AND expire_at <= ?", time.Now()).
				Limit(100).
				Find(&items).Error
			if err != nil {
				Sugar.Warnf("media cleaner query failed: %v", err)
				continue
			}
			for _, it := range items {
				if it.StoragePath != "" {
					_ = os.Remove(it.StoragePath)
				}
				// Remove row regardless of file deletion outcome
				if err := db.Delete(&models.MediaFile{}, "id = ?", it.ID).Error; err != nil {
					Sugar.Warnf("media cleaner delete row failed: %v", err)
				}
			}
		}
	}()
}
