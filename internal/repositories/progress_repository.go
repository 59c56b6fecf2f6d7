package repositories

import (
	"context"

	"github.com/SAP-F-2025/course-player/internal/models"
)

// ProgressOutboxRepository stores lesson completions that failed to reach the
// LMS.
type ProgressOutboxRepository interface {
	// Upsert records a pending completion. Recording the same lesson again
	// bumps Attempts and replaces LastError.
	Upsert(ctx context.Context, pending *models.PendingProgress) error
	ListByLearnerCourse(ctx context.Context, learnerID, courseID uint) ([]*models.PendingProgress, error)
	Delete(ctx context.Context, id uint) error
}

// ProctoringEventRepository is the audit log of integrity signals.
type ProctoringEventRepository interface {
	Create(ctx context.Context, event *models.ProctoringEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.ProctoringEvent, error)
	CountByLearnerQuiz(ctx context.Context, learnerID, quizID uint) (int64, error)
}
