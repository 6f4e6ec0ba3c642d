package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MediaFile records an uploaded media asset so unreferenced files can be swept
// after their TTL. Rows linked to a problem are kept alive.
type MediaFile struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	StorageURL  string    `gorm:"size:1024;not null" json:"storage_url"`
	StoragePath string    `gorm:"size:1024;not null" json:"storage_path"`
	FileType    string    `gorm:"size:16;not null" json:"file_type"` // "video" | "audio" | "image"
	ProblemID   *string   `gorm:"type:char(36)" json:"problem_id"`
	UploadedBy  *string   `gorm:"type:char(36)" json:"uploaded_by"`
	ExpireAt    time.Time `gorm:"index" json:"expire_at"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// BeforeCreate assigns a uuid primary key and upload timestamp.
func (m *MediaFile) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.UploadedAt.IsZero() {
		m.UploadedAt = time.Now()
	}
	return nil
}
