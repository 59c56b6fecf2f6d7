package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/repositories"
)

type ProctoringEventPostgreSQL struct {
	db *gorm.DB
}

func NewProctoringEventPostgreSQL(db *gorm.DB) repositories.ProctoringEventRepository {
	return &ProctoringEventPostgreSQL{db: db}
}

func (p ProctoringEventPostgreSQL) Create(ctx context.Context, event *models.ProctoringEvent) error {
	return p.db.WithContext(ctx).Create(event).Error
}

func (p ProctoringEventPostgreSQL) ListBySession(ctx context.Context, sessionID string) ([]*models.ProctoringEvent, error) {
	var events []*models.ProctoringEvent
	if err := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (p ProctoringEventPostgreSQL) CountByLearnerQuiz(ctx context.Context, learnerID, quizID uint) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&models.ProctoringEvent{}).
		Where("learner_id = ? AND quiz_id = ? AND type IN ?", learnerID, quizID,
			[]models.ProctoringEventType{models.EventVisibilityLost, models.EventWindowBlur}).
		Count(&count).Error
	return count, err
}
