package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the learner activity events emitted by the player
type EventType string

const (
	// Quiz events
	EventQuizStarted          EventType = "quiz.started"
	EventQuizViolation        EventType = "quiz.violation"
	EventQuizAutoSubmitted    EventType = "quiz.auto_submitted"
	EventQuizSubmitted        EventType = "quiz.submitted"
	EventQuizSubmissionFailed EventType = "quiz.submission_failed"

	// Curriculum events
	EventContentCompleted   EventType = "content.completed"
	EventCourseCompleted    EventType = "course.completed"
	EventProgressSyncFailed EventType = "progress.sync_failed"
)

const (
	eventSource  = "course-player"
	eventVersion = "1.0"
)

// LearnerEvent is the envelope for every published event
type LearnerEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	LearnerID uint                   `json:"learner_id"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func NewLearnerEvent(eventType EventType, learnerID uint, data interface{}) *LearnerEvent {
	return &LearnerEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		LearnerID: learnerID,
		Data:      data,
	}
}

// Quiz event payloads

type QuizStartedEvent struct {
	SessionID        string `json:"session_id"`
	CourseID         uint   `json:"course_id"`
	QuizID           uint   `json:"quiz_id"`
	QuestionCount    int    `json:"question_count"`
	TimeLimitMinutes int    `json:"time_limit_minutes,omitempty"`
}

type QuizViolationEvent struct {
	SessionID      string `json:"session_id"`
	QuizID         uint   `json:"quiz_id"`
	Kind           string `json:"kind"`
	ViolationCount int    `json:"violation_count"`
	MaxViolations  int    `json:"max_violations"`
	Forced         bool   `json:"forced"`
}

type QuizAutoSubmittedEvent struct {
	SessionID string `json:"session_id"`
	QuizID    uint   `json:"quiz_id"`
	Trigger   string `json:"trigger"`
}

type QuizSubmittedEvent struct {
	SessionID    string    `json:"session_id"`
	CourseID     uint      `json:"course_id"`
	QuizID       uint      `json:"quiz_id"`
	SubmissionID uint      `json:"submission_id"`
	Score        float64   `json:"score"`
	Trigger      string    `json:"trigger"`
	Answered     int       `json:"answered"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type QuizSubmissionFailedEvent struct {
	SessionID string `json:"session_id"`
	QuizID    uint   `json:"quiz_id"`
	Trigger   string `json:"trigger"`
	Error     string `json:"error"`
}

// Curriculum event payloads

type ContentCompletedEvent struct {
	CourseID        uint   `json:"course_id"`
	Item            string `json:"item"`
	Title           string `json:"title"`
	ProgressPercent int    `json:"progress_percent"`
}

type CourseCompletedEvent struct {
	CourseID    uint      `json:"course_id"`
	Title       string    `json:"title"`
	CompletedAt time.Time `json:"completed_at"`
}

type ProgressSyncFailedEvent struct {
	CourseID uint   `json:"course_id"`
	LessonID uint   `json:"lesson_id"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}
