package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/course-player/internal/apiclient"
	"github.com/SAP-F-2025/course-player/internal/curriculum"
	"github.com/SAP-F-2025/course-player/internal/events"
	"github.com/SAP-F-2025/course-player/internal/metrics"
	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/repositories"
)

// PlayerService drives a learner through a course curriculum.
type PlayerService interface {
	LoadCourse(ctx context.Context, sessionID string, courseID uint) (*CourseView, error)
	Curriculum(ctx context.Context, sessionID string, courseID uint) (*CourseView, error)
	Select(ctx context.Context, sessionID string, courseID uint, ref models.ItemRef) (*CourseView, error)
	Complete(ctx context.Context, sessionID string, courseID uint, ref models.ItemRef) (*CompletionResult, error)

	// MarkQuizFinished records a finished quiz session in the curriculum.
	MarkQuizFinished(ctx context.Context, ls *LearnerSession, courseID, quizID uint) (*CourseView, error)
}

type CourseView struct {
	Curriculum     models.Curriculum   `json:"curriculum"`
	Active         *models.ContentItem `json:"active,omitempty"`
	CourseComplete bool                `json:"course_complete"`
}

type CompletionResult struct {
	CourseView
	Item      models.ContentItem `json:"item"`
	Synced    bool               `json:"synced"`
	SyncError string             `json:"sync_error,omitempty"`
}

type playerService struct {
	learners  LearnerService
	outbox    repositories.ProgressOutboxRepository
	publisher events.EventPublisher
	logger    *slog.Logger
	ops       *ServiceLogger
}

func NewPlayerService(learners LearnerService, outbox repositories.ProgressOutboxRepository, publisher events.EventPublisher, logger *slog.Logger) PlayerService {
	return &playerService{
		learners:  learners,
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		ops:       NewServiceLogger(logger, "player"),
	}
}

// ===== CURRICULUM OPERATIONS =====

func (s *playerService) LoadCourse(ctx context.Context, sessionID string, courseID uint) (*CourseView, error) {
	ls, err := s.learners.Session(sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loading course",
		"session_id", sessionID,
		"learner_id", ls.Learner.ID,
		"course_id", courseID)

	pending := s.replayOutbox(ctx, ls, courseID)

	course, err := ls.LMS().GetCourse(ctx, courseID)
	if err != nil {
		switch {
		case apiclient.IsNotFound(err):
			return nil, ErrCourseNotFound
		case errors.Is(err, apiclient.ErrSessionExpired):
			return nil, ErrLearnerSessionExpired
		}
		s.logger.Error("Failed to load course", "course_id", courseID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCourseLoadFailed, err)
	}

	c := curriculum.Build(*course)
	// Completions the LMS has not acknowledged yet still count locally.
	for _, lessonID := range pending {
		if next, err := curriculum.MarkCompleted(c, models.LessonRef(lessonID)); err == nil {
			c = next
		}
	}

	st := courseState{curriculum: c}
	if first, ok := curriculum.FirstUnfinished(c); ok {
		st.active = first.Ref
	}
	ls.setCourse(courseID, st)

	s.logger.Info("Course loaded",
		"course_id", courseID,
		"items", len(c.Items),
		"progress_percent", c.ProgressPercent,
		"pending_sync", len(pending))

	return s.view(st), nil
}

func (s *playerService) Curriculum(_ context.Context, sessionID string, courseID uint) (*CourseView, error) {
	ls, err := s.learners.Session(sessionID)
	if err != nil {
		return nil, err
	}
	st, ok := ls.course(courseID)
	if !ok {
		return nil, ErrCourseNotLoaded
	}
	return s.view(st), nil
}

// Select makes ref the active item. Locked items cannot be selected.
func (s *playerService) Select(_ context.Context, sessionID string, courseID uint, ref models.ItemRef) (*CourseView, error) {
	ls, err := s.learners.Session(sessionID)
	if err != nil {
		return nil, err
	}

	var st courseState
	err = ls.updateCourse(courseID, func(cs *courseState) error {
		_, item, ok := curriculum.Find(cs.curriculum, ref)
		if !ok {
			return ErrItemNotFound
		}
		if item.Locked {
			return ErrItemLocked
		}
		cs.active = ref
		st = *cs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(st), nil
}

// Complete marks ref completed locally, syncs lesson progress to the LMS and
// advances to the next item. A failed sync keeps the local completion and is
// queued for replay.
func (s *playerService) Complete(ctx context.Context, sessionID string, courseID uint, ref models.ItemRef) (result *CompletionResult, err error) {
	ls, err := s.learners.Session(sessionID)
	if err != nil {
		return nil, err
	}
	op := s.ops.WithOperation(ctx, "complete_item", ls.Learner.ID)
	defer func() { op.LogResult(ref.String(), err) }()

	st, ok := ls.course(courseID)
	if !ok {
		return nil, ErrCourseNotLoaded
	}
	_, item, ok := curriculum.Find(st.curriculum, ref)
	if !ok {
		return nil, ErrItemNotFound
	}
	if item.Locked {
		return nil, ErrItemLocked
	}
	// Quiz items only complete through a finished quiz session.
	if ref.Kind == models.KindQuiz {
		return nil, ErrQuizCompletionByGrading
	}

	outcome, err := s.applyCompletion(ctx, ls, courseID, ref, true)
	if err != nil {
		return nil, err
	}

	result = &CompletionResult{
		CourseView: *s.view(outcome.state),
		Item:       outcome.item,
		Synced:     true,
	}
	if ref.Kind == models.KindLesson && !outcome.wasCompleted {
		if syncErr := ls.LMS().MarkLessonComplete(ctx, ref.ID); syncErr != nil {
			result.Synced = false
			result.SyncError = syncErr.Error()
			s.recordSyncFailure(ctx, ls, courseID, ref.ID, syncErr)
		}
	}
	return result, nil
}

func (s *playerService) MarkQuizFinished(ctx context.Context, ls *LearnerSession, courseID, quizID uint) (*CourseView, error) {
	outcome, err := s.applyCompletion(ctx, ls, courseID, models.QuizRef(quizID), false)
	if err != nil {
		return nil, err
	}
	return s.view(outcome.state), nil
}

// ===== HELPERS =====

type completionOutcome struct {
	state        courseState
	item         models.ContentItem
	wasCompleted bool
}

func (s *playerService) applyCompletion(ctx context.Context, ls *LearnerSession, courseID uint, ref models.ItemRef, advance bool) (completionOutcome, error) {
	var out completionOutcome
	var courseWasDone bool

	err := ls.updateCourse(courseID, func(cs *courseState) error {
		_, item, ok := curriculum.Find(cs.curriculum, ref)
		if !ok {
			return ErrItemNotFound
		}
		out.wasCompleted = item.Completed
		courseWasDone = curriculum.IsComplete(cs.curriculum)

		next, err := curriculum.MarkCompleted(cs.curriculum, ref)
		if err != nil {
			return err
		}
		cs.curriculum = next
		if advance {
			if following, ok := curriculum.Next(next, ref); ok {
				cs.active = following.Ref
			} else {
				cs.active = ref
			}
		}
		_, out.item, _ = curriculum.Find(next, ref)
		out.state = *cs
		return nil
	})
	if err != nil {
		return out, err
	}

	if out.wasCompleted {
		return out, nil
	}

	c := out.state.curriculum
	metrics.ItemCompleted(string(ref.Kind))
	s.logger.Info("Curriculum item completed",
		"learner_id", ls.Learner.ID,
		"course_id", courseID,
		"item", ref.String(),
		"progress_percent", c.ProgressPercent)

	s.publish(ctx, events.NewLearnerEvent(events.EventContentCompleted, ls.Learner.ID, events.ContentCompletedEvent{
		CourseID:        courseID,
		Item:            ref.String(),
		Title:           out.item.Title,
		ProgressPercent: c.ProgressPercent,
	}))

	if !courseWasDone && curriculum.IsComplete(c) {
		s.logger.Info("Course completed", "learner_id", ls.Learner.ID, "course_id", courseID)
		s.publish(ctx, events.NewLearnerEvent(events.EventCourseCompleted, ls.Learner.ID, events.CourseCompletedEvent{
			CourseID:    courseID,
			Title:       c.Title,
			CompletedAt: time.Now().UTC(),
		}))
	}
	return out, nil
}

// replayOutbox retries queued lesson completions and returns the lessons that
// are still unacknowledged.
func (s *playerService) replayOutbox(ctx context.Context, ls *LearnerSession, courseID uint) []uint {
	rows, err := s.outbox.ListByLearnerCourse(ctx, ls.Learner.ID, courseID)
	if err != nil {
		s.logger.Error("Failed to read progress outbox", "course_id", courseID, "error", err)
		return nil
	}

	var pending []uint
	for _, row := range rows {
		if err := ls.LMS().MarkLessonComplete(ctx, row.LessonID); err != nil {
			s.logger.Warn("Progress replay failed",
				"lesson_id", row.LessonID,
				"attempts", row.Attempts,
				"error", err)
			row.LastError = err.Error()
			if err := s.outbox.Upsert(ctx, row); err != nil {
				s.logger.Error("Failed to update progress outbox", "lesson_id", row.LessonID, "error", err)
			}
			pending = append(pending, row.LessonID)
			continue
		}
		if err := s.outbox.Delete(ctx, row.ID); err != nil {
			s.logger.Error("Failed to clear progress outbox entry", "id", row.ID, "error", err)
		}
		s.logger.Info("Progress replayed", "lesson_id", row.LessonID, "course_id", courseID)
	}
	return pending
}

func (s *playerService) recordSyncFailure(ctx context.Context, ls *LearnerSession, courseID, lessonID uint, syncErr error) {
	metrics.ProgressSyncFailed()
	s.logger.Error("Failed to sync lesson progress",
		"learner_id", ls.Learner.ID,
		"course_id", courseID,
		"lesson_id", lessonID,
		"error", syncErr)

	pending := &models.PendingProgress{
		LearnerID: ls.Learner.ID,
		CourseID:  courseID,
		LessonID:  lessonID,
		LastError: syncErr.Error(),
	}
	if err := s.outbox.Upsert(ctx, pending); err != nil {
		s.logger.Error("Failed to queue lesson progress", "lesson_id", lessonID, "error", err)
	}

	s.publish(ctx, events.NewLearnerEvent(events.EventProgressSyncFailed, ls.Learner.ID, events.ProgressSyncFailedEvent{
		CourseID: courseID,
		LessonID: lessonID,
		Attempts: pending.Attempts,
		Error:    syncErr.Error(),
	}))
}

func (s *playerService) publish(ctx context.Context, event *events.LearnerEvent) {
	if err := s.publisher.PublishLearnerEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish learner event", "type", event.Type, "error", err)
	}
}

func (s *playerService) view(st courseState) *CourseView {
	v := &CourseView{
		Curriculum:     st.curriculum,
		CourseComplete: curriculum.IsComplete(st.curriculum),
	}
	if _, item, ok := curriculum.Find(st.curriculum, st.active); ok {
		v.Active = &item
	}
	return v
}
