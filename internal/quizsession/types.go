package quizsession

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/course-player/internal/models"
)

type Status string

const (
	StatusLoading    Status = "loading"
	StatusError      Status = "error"
	StatusPlaying    Status = "playing"
	StatusSubmitting Status = "submitting"
	StatusFinished   Status = "finished"
)

func (s Status) Terminal() bool {
	return s == StatusError || s == StatusFinished
}

// Trigger records what started a submission.
type Trigger string

const (
	TriggerManual         Trigger = "manual"
	TriggerTimeout        Trigger = "timeout"
	TriggerViolationLimit Trigger = "violation_limit"
	TriggerRetry          Trigger = "auto_retry"
)

func (t Trigger) Automatic() bool {
	return t != TriggerManual && t != ""
}

type QuizSource interface {
	GetQuiz(ctx context.Context, quizID uint) (*models.Quiz, error)
}

type Submitter interface {
	SubmitQuiz(ctx context.Context, submission models.Submission) (*models.SubmissionResult, error)
}

type Config struct {
	MaxViolations  int
	TickInterval   time.Duration
	AutoRetryDelay time.Duration
	SubmitTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxViolations:  2,
		TickInterval:   time.Second,
		AutoRetryDelay: 3 * time.Second,
		SubmitTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxViolations <= 0 {
		c.MaxViolations = d.MaxViolations
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.AutoRetryDelay <= 0 {
		c.AutoRetryDelay = d.AutoRetryDelay
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = d.SubmitTimeout
	}
	return c
}

// Hooks are called outside the session lock, so they may call back into the
// session. Any of them may be nil.
type Hooks struct {
	OnLoaded       func(Snapshot)
	OnViolation    func(Warning, models.ProctoringEventType)
	OnAutoSubmit   func(Trigger)
	OnSubmitted    func(Trigger, *models.SubmissionResult)
	OnSubmitFailed func(Trigger, error)
	OnFinished     func(Snapshot)
}

// Warning is surfaced to the learner after each counted violation.
type Warning struct {
	Count  int  `json:"count"`
	Max    int  `json:"max"`
	Forced bool `json:"forced"`
}

// Signal is one focus-loss event delivered by a watcher.
type Signal struct {
	Kind models.ProctoringEventType
	At   time.Time
}

// AnswerInput carries the learner's raw answer. Option-based questions use
// OptionID, short answers use Text.
type AnswerInput struct {
	OptionID *uint
	Text     *string
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	QuizID               uint                        `json:"quiz_id"`
	Status               Status                      `json:"status"`
	Quiz                 *models.Quiz                `json:"quiz,omitempty"`
	QuestionCount        int                         `json:"question_count"`
	CurrentQuestionIndex int                         `json:"current_question_index"`
	Answers              map[uint]models.AnswerEntry `json:"answers"`
	AnsweredCount        int                         `json:"answered_count"`
	ProgressPercent      int                         `json:"progress_percent"`
	Timed                bool                        `json:"timed"`
	SecondsRemaining     int                         `json:"seconds_remaining"`
	Clock                string                      `json:"clock,omitempty"`
	ViolationCount       int                         `json:"violation_count"`
	MaxViolations        int                         `json:"max_violations"`
	LastTrigger          Trigger                     `json:"last_trigger,omitempty"`
	LastError            string                      `json:"last_error,omitempty"`
	LoadError            string                      `json:"load_error,omitempty"`
	ManualSubmitRequired bool                        `json:"manual_submit_required"`
	Result               *models.SubmissionResult    `json:"result,omitempty"`
}

// FormatClock renders a countdown as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
