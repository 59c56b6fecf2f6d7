package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/repositories"
)

type ProgressOutboxPostgreSQL struct {
	db *gorm.DB
}

func NewProgressOutboxPostgreSQL(db *gorm.DB) repositories.ProgressOutboxRepository {
	return &ProgressOutboxPostgreSQL{db: db}
}

func (p ProgressOutboxPostgreSQL) Upsert(ctx context.Context, pending *models.PendingProgress) error {
	if pending.Attempts == 0 {
		pending.Attempts = 1
	}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "learner_id"}, {Name: "course_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"attempts":   gorm.Expr("pending_progress.attempts + 1"),
				"last_error": pending.LastError,
				"updated_at": time.Now(),
			}),
		}).
		Create(pending).Error
}

func (p ProgressOutboxPostgreSQL) ListByLearnerCourse(ctx context.Context, learnerID, courseID uint) ([]*models.PendingProgress, error) {
	var pending []*models.PendingProgress
	if err := p.db.WithContext(ctx).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Order("created_at ASC").
		Find(&pending).Error; err != nil {
		return nil, err
	}
	return pending, nil
}

func (p ProgressOutboxPostgreSQL) Delete(ctx context.Context, id uint) error {
	return p.db.WithContext(ctx).Delete(&models.PendingProgress{}, id).Error
}
