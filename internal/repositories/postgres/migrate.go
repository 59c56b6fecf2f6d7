package postgres

import (
	"gorm.io/gorm"

	"github.com/SAP-F-2025/course-player/internal/models"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.PendingProgress{}, &models.ProctoringEvent{})
}
