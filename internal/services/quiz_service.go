package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/course-player/internal/apiclient"
	"github.com/SAP-F-2025/course-player/internal/curriculum"
	"github.com/SAP-F-2025/course-player/internal/events"
	"github.com/SAP-F-2025/course-player/internal/metrics"
	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/quizsession"
	"github.com/SAP-F-2025/course-player/internal/repositories"
	"github.com/SAP-F-2025/course-player/internal/validator"
)

// QuizService runs timed, proctored quiz sessions for signed-in learners.
type QuizService interface {
	Start(ctx context.Context, sessionID string, req *StartQuizRequest) (*QuizSessionView, error)
	Get(ctx context.Context, sessionID, quizSessionID string) (*QuizSessionView, error)
	Answer(ctx context.Context, sessionID, quizSessionID string, questionID uint, req *AnswerRequest) (*QuizSessionView, error)
	Next(ctx context.Context, sessionID, quizSessionID string) (*QuizSessionView, error)
	Previous(ctx context.Context, sessionID, quizSessionID string) (*QuizSessionView, error)
	ReportViolation(ctx context.Context, sessionID, quizSessionID string, req *ViolationRequest) (*ViolationResponse, error)
	Submit(ctx context.Context, sessionID, quizSessionID string) (*QuizSessionView, error)
	Cancel(ctx context.Context, sessionID, quizSessionID string) error
	Watch(ctx context.Context, sessionID, quizSessionID string, signals <-chan quizsession.Signal) (func(), error)
}

type StartQuizRequest struct {
	CourseID uint `json:"course_id" validate:"required"`
	QuizID   uint `json:"quiz_id" validate:"required"`
}

type AnswerRequest struct {
	SelectedOptionID *uint   `json:"selected_option_id" validate:"required_without=TextAnswer"`
	TextAnswer       *string `json:"text_answer" validate:"excluded_with=SelectedOptionID"`
}

type ViolationRequest struct {
	Kind string `json:"kind" validate:"required,violation_kind"`
}

type QuizSessionView struct {
	ID       string `json:"id"`
	CourseID uint   `json:"course_id"`
	quizsession.Snapshot
}

type ViolationResponse struct {
	Warning quizsession.Warning `json:"warning"`
	Session *QuizSessionView    `json:"session"`
}

type quizService struct {
	learners  LearnerService
	player    PlayerService
	events    repositories.ProctoringEventRepository
	publisher events.EventPublisher
	cfg       quizsession.Config
	logger    *slog.Logger
	ops       *ServiceLogger
	validator *validator.Validator

	// quiz session id -> learner session id
	mu     sync.RWMutex
	owners map[string]string
}

func NewQuizService(
	learners LearnerService,
	player PlayerService,
	proctoring repositories.ProctoringEventRepository,
	publisher events.EventPublisher,
	cfg quizsession.Config,
	logger *slog.Logger,
	validator *validator.Validator,
) QuizService {
	return &quizService{
		learners:  learners,
		player:    player,
		events:    proctoring,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		ops:       NewServiceLogger(logger, "quiz"),
		validator: validator,
		owners:    make(map[string]string),
	}
}

// ===== SESSION LIFECYCLE =====

// Start opens a quiz session for a quiz of a loaded course. An open session
// for the same quiz is resumed instead.
func (s *quizService) Start(ctx context.Context, sessionID string, req *StartQuizRequest) (*QuizSessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	ls, err := s.learners.Session(sessionID)
	if err != nil {
		return nil, err
	}

	st, ok := ls.course(req.CourseID)
	if !ok {
		return nil, ErrCourseNotLoaded
	}
	_, item, ok := curriculum.Find(st.curriculum, models.QuizRef(req.QuizID))
	if !ok {
		return nil, ErrQuizNotInCourse
	}
	if item.Locked {
		return nil, ErrItemLocked
	}

	if entry, ok := ls.openQuiz(req.CourseID, req.QuizID); ok {
		s.logger.Info("Resuming quiz session", "quiz_session_id", entry.id, "quiz_id", req.QuizID)
		return viewOf(entry), nil
	}

	entry := &quizEntry{
		id:        uuid.NewString(),
		courseID:  req.CourseID,
		startedAt: time.Now(),
	}
	entry.session = quizsession.New(req.QuizID, ls.LMS(), ls.LMS(), s.cfg, s.hooks(ls, entry))
	if err := ls.addQuiz(entry); err != nil {
		entry.session.Close()
		return nil, err
	}
	s.mu.Lock()
	s.owners[entry.id] = ls.ID
	s.mu.Unlock()
	metrics.QuizSessionOpened()

	s.logger.Info("Starting quiz session",
		"quiz_session_id", entry.id,
		"learner_id", ls.Learner.ID,
		"course_id", req.CourseID,
		"quiz_id", req.QuizID)

	if err := entry.session.Load(ctx); err != nil {
		s.drop(ls, entry.id)
		s.logger.Error("Failed to load quiz", "quiz_id", req.QuizID, "error", err)
		if apiclient.IsNotFound(err) {
			return nil, ErrQuizNotFound
		}
		if errors.Is(err, apiclient.ErrSessionExpired) {
			return nil, ErrLearnerSessionExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrQuizLoadFailed, err)
	}
	return viewOf(entry), nil
}

func (s *quizService) Get(_ context.Context, sessionID, quizSessionID string) (*QuizSessionView, error) {
	_, entry, err := s.lookup(sessionID, quizSessionID)
	if err != nil {
		return nil, err
	}
	return viewOf(entry), nil
}

func (s *quizService) Cancel(_ context.Context, sessionID, quizSessionID string) error {
	ls, entry, err := s.lookup(sessionID, quizSessionID)
	if err != nil {
		return err
	}
	s.drop(ls, entry.id)
	s.logger.Info("Quiz session closed", "quiz_session_id", entry.id, "status", entry.session.Status())
	return nil
}

// ===== LEARNER INPUT =====

func (s *quizService) Answer(_ context.Context, sessionID, quizSessionID string, questionID uint, req *AnswerRequest) (*QuizSessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	_, entry, err := s.lookup(sessionID, quizSessionID)
	if err != nil {
		return nil, err
	}
	in := quizsession.AnswerInput{OptionID: req.SelectedOptionID, Text: req.TextAnswer}
	if err := entry.session.RecordAnswer(questionID, in); err != nil {
		return nil, err
	}
	return viewOf(entry), nil
}

func (s *quizService) Next(_ context.Context, sessionID, quizSessionID string) (*QuizSessionView, error) {
	_, entry, err := s.lookup(sessionID, quizSessionID)
	if err != nil {
		return nil, err
	}
	if _, err := entry.session.Next(); err != nil {
		return nil, err
	}
	return viewOf(entry), nil
}

func (s *quizService) Previous(_ context.Context, sessionID, quizSessionID string) (*QuizSessionView, error) {
	_, entry, err := s.lookup(sessionID, quizSessionID)
	if err != nil {
		return nil, err
	}
	if _, err := entry.session.Previous(); err != nil {
		return nil, err
	}
	return viewOf(entry), nil
}

func (s *quizService) ReportViolation(_ context.Context, sessionID, quizSessionID string, req *ViolationRequest) (*ViolationResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	_, entry, err := s.lookup(sessionID, quizSessionID)
	if err != nil {
		return nil, err
	}
	warning, err := entry.session.ReportViolation(models.ProctoringEventType(req.Kind))
	if err != nil {
		return nil, err
	}
	return &ViolationResponse{Warning: warning, Session: viewOf(entry)}, nil
}

// Watch feeds focus-loss signals from a client connection into the session
// until ctx is done, the returned function is called or the session closes.
func (s *quizService) Watch(ctx context.Context, sessionID, quizSessionID string, signals <-chan quizsession.Signal) (func(), error) {
	_, entry, err := s.lookup(sessionID, quizSessionID)
	if err != nil {
		return nil, err
	}
	return entry.session.Watch(ctx, signals), nil
}

func (s *quizService) Submit(ctx context.Context, sessionID, quizSessionID string) (*QuizSessionView, error) {
	ls, entry, err := s.lookup(sessionID, quizSessionID)
	if err != nil {
		return nil, err
	}
	op := s.ops.WithOperation(ctx, "submit_quiz", ls.Learner.ID)
	_, err = entry.session.Submit(ctx)
	op.LogResult(quizSessionID, err)
	if err != nil {
		return nil, err
	}
	return viewOf(entry), nil
}

// ===== HELPERS =====

func (s *quizService) lookup(sessionID, quizSessionID string) (*LearnerSession, *quizEntry, error) {
	ls, err := s.learners.Session(sessionID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	owner, ok := s.owners[quizSessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrQuizSessionNotFound
	}
	if owner != ls.ID {
		return nil, nil, NewPermissionError(ls.ID, quizSessionID, "quiz session", "access")
	}

	entry, ok := ls.quiz(quizSessionID)
	if !ok {
		return nil, nil, ErrQuizSessionNotFound
	}
	return ls, entry, nil
}

func (s *quizService) drop(ls *LearnerSession, quizSessionID string) {
	s.mu.Lock()
	delete(s.owners, quizSessionID)
	s.mu.Unlock()

	if entry, ok := ls.removeQuiz(quizSessionID); ok {
		entry.session.Close()
		metrics.QuizSessionClosed()
	}
}

// hooks wires session callbacks to the audit log, learner events, metrics and
// the curriculum. They may run on the ticker or retry goroutine, so they use
// their own context.
func (s *quizService) hooks(ls *LearnerSession, entry *quizEntry) quizsession.Hooks {
	learnerID := ls.Learner.ID
	log := s.logger.With("quiz_session_id", entry.id, "learner_id", learnerID)

	return quizsession.Hooks{
		OnLoaded: func(snap quizsession.Snapshot) {
			if snap.Status != quizsession.StatusPlaying {
				return
			}
			ctx, cancel := s.background()
			defer cancel()
			timeLimit := 0
			if snap.Quiz != nil {
				timeLimit = snap.Quiz.TimeLimitMinutes
			}
			s.publish(ctx, log, events.NewLearnerEvent(events.EventQuizStarted, learnerID, events.QuizStartedEvent{
				SessionID:        entry.id,
				CourseID:         entry.courseID,
				QuizID:           snap.QuizID,
				QuestionCount:    snap.QuestionCount,
				TimeLimitMinutes: timeLimit,
			}))
		},
		OnViolation: func(w quizsession.Warning, kind models.ProctoringEventType) {
			metrics.Violation(string(kind))
			log.Warn("Proctoring violation", "kind", kind, "count", w.Count, "max", w.Max, "forced", w.Forced)

			ctx, cancel := s.background()
			defer cancel()
			s.record(ctx, log, ls, entry, kind, w.Count, map[string]interface{}{
				"max_violations": w.Max,
				"forced":         w.Forced,
			})
			s.publish(ctx, log, events.NewLearnerEvent(events.EventQuizViolation, learnerID, events.QuizViolationEvent{
				SessionID:      entry.id,
				QuizID:         entry.session.QuizID(),
				Kind:           string(kind),
				ViolationCount: w.Count,
				MaxViolations:  w.Max,
				Forced:         w.Forced,
			}))
		},
		OnAutoSubmit: func(trigger quizsession.Trigger) {
			log.Info("Auto-submitting quiz", "trigger", trigger)

			ctx, cancel := s.background()
			defer cancel()
			snap := entry.session.Snapshot()
			s.record(ctx, log, ls, entry, models.EventAutoSubmit, snap.ViolationCount, map[string]interface{}{
				"trigger":           trigger,
				"seconds_remaining": snap.SecondsRemaining,
			})
			s.publish(ctx, log, events.NewLearnerEvent(events.EventQuizAutoSubmitted, learnerID, events.QuizAutoSubmittedEvent{
				SessionID: entry.id,
				QuizID:    entry.session.QuizID(),
				Trigger:   string(trigger),
			}))
		},
		OnSubmitted: func(trigger quizsession.Trigger, result *models.SubmissionResult) {
			metrics.QuizSubmitted(string(trigger), true)
			log.Info("Quiz submitted", "trigger", trigger, "submission_id", result.ID, "score", result.Score)

			ctx, cancel := s.background()
			defer cancel()
			s.publish(ctx, log, events.NewLearnerEvent(events.EventQuizSubmitted, learnerID, events.QuizSubmittedEvent{
				SessionID:    entry.id,
				CourseID:     entry.courseID,
				QuizID:       entry.session.QuizID(),
				SubmissionID: result.ID,
				Score:        result.Score,
				Trigger:      string(trigger),
				Answered:     len(result.Answers),
				SubmittedAt:  result.SubmittedAt,
			}))
		},
		OnSubmitFailed: func(trigger quizsession.Trigger, err error) {
			metrics.QuizSubmitted(string(trigger), false)
			log.Error("Quiz submission failed", "trigger", trigger, "error", err)

			ctx, cancel := s.background()
			defer cancel()
			s.publish(ctx, log, events.NewLearnerEvent(events.EventQuizSubmissionFailed, learnerID, events.QuizSubmissionFailedEvent{
				SessionID: entry.id,
				QuizID:    entry.session.QuizID(),
				Trigger:   string(trigger),
				Error:     err.Error(),
			}))
		},
		OnFinished: func(snap quizsession.Snapshot) {
			ctx, cancel := s.background()
			defer cancel()
			if _, err := s.player.MarkQuizFinished(ctx, ls, entry.courseID, snap.QuizID); err != nil {
				log.Warn("Failed to mark quiz completed in curriculum", "quiz_id", snap.QuizID, "error", err)
			}
		},
	}
}

func (s *quizService) record(ctx context.Context, log *slog.Logger, ls *LearnerSession, entry *quizEntry, kind models.ProctoringEventType, count int, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Warn("Failed to encode proctoring event data", "error", err)
		payload = []byte("{}")
	}
	event := &models.ProctoringEvent{
		SessionID:      entry.id,
		LearnerID:      ls.Learner.ID,
		QuizID:         entry.session.QuizID(),
		Type:           kind,
		Data:           datatypes.JSON(payload),
		ViolationCount: count,
		TimeOffset:     int(time.Since(entry.startedAt).Seconds()),
	}
	if snap := entry.session.Snapshot(); snap.Quiz != nil && snap.CurrentQuestionIndex < len(snap.Quiz.Questions) {
		questionID := snap.Quiz.Questions[snap.CurrentQuestionIndex].ID
		event.QuestionID = &questionID
	}
	if err := s.events.Create(ctx, event); err != nil {
		log.Error("Failed to record proctoring event", "kind", kind, "error", err)
	}
}

func (s *quizService) publish(ctx context.Context, log *slog.Logger, event *events.LearnerEvent) {
	if err := s.publisher.PublishLearnerEvent(ctx, event); err != nil {
		log.Warn("Failed to publish learner event", "type", event.Type, "error", err)
	}
}

func (s *quizService) background() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func viewOf(entry *quizEntry) *QuizSessionView {
	return &QuizSessionView{
		ID:       entry.id,
		CourseID: entry.courseID,
		Snapshot: entry.session.Snapshot(),
	}
}
