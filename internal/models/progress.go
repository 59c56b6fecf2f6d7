package models

import "time"

// PendingProgress is a lesson completion the LMS has not acknowledged yet. It is
// replayed the next time the learner loads the course.
type PendingProgress struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	LearnerID uint   `json:"learner_id" gorm:"not null;uniqueIndex:idx_pending_progress_item"`
	CourseID  uint   `json:"course_id" gorm:"not null;uniqueIndex:idx_pending_progress_item"`
	LessonID  uint   `json:"lesson_id" gorm:"not null;uniqueIndex:idx_pending_progress_item"`
	Attempts  int    `json:"attempts" gorm:"default:1"`
	LastError string `json:"last_error" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PendingProgress) TableName() string {
	return "pending_progress"
}
