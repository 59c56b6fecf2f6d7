package models

import (
	"time"

	"gorm.io/datatypes"
)

type ProctoringEventType string

const (
	EventVisibilityLost ProctoringEventType = "visibility_lost"
	EventWindowBlur     ProctoringEventType = "window_blur"
	EventAutoSubmit     ProctoringEventType = "auto_submit"
)

func (t ProctoringEventType) IsViolation() bool {
	return t == EventVisibilityLost || t == EventWindowBlur
}

// ProctoringEvent is the local audit trail of integrity signals seen during a
// quiz attempt.
type ProctoringEvent struct {
	ID        uint                `json:"id" gorm:"primaryKey"`
	SessionID string              `json:"session_id" gorm:"not null;size:36;index"`
	LearnerID uint                `json:"learner_id" gorm:"not null;index"`
	QuizID    uint                `json:"quiz_id" gorm:"not null;index"`
	Type      ProctoringEventType `json:"type" gorm:"not null;size:32;index"`

	// Event data
	Data           datatypes.JSON `json:"data" gorm:"type:jsonb"`
	ViolationCount int            `json:"violation_count"`

	// Context
	QuestionID *uint `json:"question_id"`
	TimeOffset int   `json:"time_offset"` // Seconds from attempt start

	CreatedAt time.Time `json:"created_at"`
}

func (ProctoringEvent) TableName() string {
	return "proctoring_events"
}
