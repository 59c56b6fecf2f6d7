package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/course-player/internal/cache"
	"github.com/SAP-F-2025/course-player/internal/metrics"
	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/quizsession"
	"github.com/SAP-F-2025/course-player/internal/validator"
)

type LearnerService interface {
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context, sessionID string) (*models.Learner, error)
	Session(sessionID string) (*LearnerSession, error)
	Shutdown(ctx context.Context)
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	SessionID string         `json:"session_id"`
	Learner   models.Learner `json:"learner"`
}

// LearnerSession is everything the player holds for one signed-in learner:
// the auth session, the curricula loaded so far and the open quiz sessions.
type LearnerSession struct {
	ID        string
	Learner   models.Learner
	CreatedAt time.Time

	auth AuthSession
	lms  LMSClient

	mu      sync.Mutex
	courses map[uint]*courseState
	quizzes map[string]*quizEntry
	closed  bool
}

type courseState struct {
	curriculum models.Curriculum
	active     models.ItemRef
}

type quizEntry struct {
	id        string
	courseID  uint
	session   *quizsession.Session
	startedAt time.Time
}

func newLearnerSession(auth AuthSession, lms LMSClient) *LearnerSession {
	return &LearnerSession{
		ID:        uuid.NewString(),
		Learner:   auth.Learner(),
		CreatedAt: time.Now(),
		auth:      auth,
		lms:       lms,
		courses:   make(map[uint]*courseState),
		quizzes:   make(map[string]*quizEntry),
	}
}

func (ls *LearnerSession) LMS() LMSClient { return ls.lms }

func (ls *LearnerSession) course(courseID uint) (courseState, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	st, ok := ls.courses[courseID]
	if !ok {
		return courseState{}, false
	}
	return *st, true
}

func (ls *LearnerSession) setCourse(courseID uint, st courseState) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.courses[courseID] = &st
}

// updateCourse applies fn to the stored course state under the session lock.
func (ls *LearnerSession) updateCourse(courseID uint, fn func(*courseState) error) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	st, ok := ls.courses[courseID]
	if !ok {
		return ErrCourseNotLoaded
	}
	next := *st
	if err := fn(&next); err != nil {
		return err
	}
	ls.courses[courseID] = &next
	return nil
}

func (ls *LearnerSession) addQuiz(entry *quizEntry) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return ErrLearnerSessionNotFound
	}
	ls.quizzes[entry.id] = entry
	return nil
}

func (ls *LearnerSession) quiz(id string) (*quizEntry, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	entry, ok := ls.quizzes[id]
	return entry, ok
}

// openQuiz returns a non-terminal quiz session for the quiz, if any.
func (ls *LearnerSession) openQuiz(courseID, quizID uint) (*quizEntry, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, entry := range ls.quizzes {
		if entry.courseID == courseID && entry.session.QuizID() == quizID && !entry.session.Status().Terminal() {
			return entry, true
		}
	}
	return nil, false
}

func (ls *LearnerSession) removeQuiz(id string) (*quizEntry, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	entry, ok := ls.quizzes[id]
	if ok {
		delete(ls.quizzes, id)
	}
	return entry, ok
}

// close tears down every quiz session. Returns false if already closed.
func (ls *LearnerSession) close() bool {
	ls.mu.Lock()
	if ls.closed {
		ls.mu.Unlock()
		return false
	}
	ls.closed = true
	entries := make([]*quizEntry, 0, len(ls.quizzes))
	for id, entry := range ls.quizzes {
		entries = append(entries, entry)
		delete(ls.quizzes, id)
	}
	ls.mu.Unlock()

	for _, entry := range entries {
		entry.session.Close()
		metrics.QuizSessionClosed()
	}
	return true
}

type learnerService struct {
	auth      Authenticator
	cache     cache.CacheService
	cacheTTL  time.Duration
	logger    *slog.Logger
	validator *validator.Validator

	mu       sync.RWMutex
	sessions map[string]*LearnerSession
}

func NewLearnerService(auth Authenticator, cacheService cache.CacheService, cacheTTL time.Duration, logger *slog.Logger, validator *validator.Validator) LearnerService {
	return &learnerService{
		auth:      auth,
		cache:     cacheService,
		cacheTTL:  cacheTTL,
		logger:    logger,
		validator: validator,
		sessions:  make(map[string]*LearnerSession),
	}
}

func (s *learnerService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	auth, lms, err := s.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		s.logger.Warn("Login failed", "username", req.Username, "error", err)
		return nil, err
	}

	learner := auth.Learner()
	ls := newLearnerSession(auth, NewCachedLMS(lms, s.cache, learner.ID, s.cacheTTL, s.logger))

	s.mu.Lock()
	s.sessions[ls.ID] = ls
	s.mu.Unlock()
	metrics.LearnerLoggedIn()

	s.logger.Info("Learner logged in",
		"session_id", ls.ID,
		"learner_id", learner.ID,
		"username", learner.Username)

	return &LoginResponse{SessionID: ls.ID, Learner: learner}, nil
}

func (s *learnerService) Logout(ctx context.Context, sessionID string) error {
	ls, ok := s.take(sessionID)
	if !ok {
		return ErrLearnerSessionNotFound
	}
	s.teardown(ctx, ls)
	if err := s.cache.DeletePattern(ctx, cache.LearnerPattern(ls.Learner.ID)); err != nil {
		s.logger.Warn("Failed to evict learner cache", "learner_id", ls.Learner.ID, "error", err)
	}
	s.logger.Info("Learner logged out", "session_id", sessionID, "learner_id", ls.Learner.ID)
	return nil
}

func (s *learnerService) Me(_ context.Context, sessionID string) (*models.Learner, error) {
	ls, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	learner := ls.auth.Learner()
	return &learner, nil
}

// Session returns the learner session. A session whose token refresh failed
// is dropped and reported as expired.
func (s *learnerService) Session(sessionID string) (*LearnerSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrLearnerSessionNotFound
	}
	if ls.auth.Closed() {
		if ls, ok := s.take(sessionID); ok {
			s.logger.Warn("Learner session expired", "session_id", sessionID, "learner_id", ls.Learner.ID)
			if ls.close() {
				metrics.LearnerLoggedOut()
			}
		}
		return nil, ErrLearnerSessionExpired
	}
	return ls, nil
}

func (s *learnerService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*LearnerSession, 0, len(s.sessions))
	for id, ls := range s.sessions {
		sessions = append(sessions, ls)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, ls := range sessions {
		s.teardown(ctx, ls)
	}
	s.logger.Info("Learner sessions closed", "count", len(sessions))
}

func (s *learnerService) take(sessionID string) (*LearnerSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	return ls, ok
}

func (s *learnerService) teardown(ctx context.Context, ls *LearnerSession) {
	if !ls.close() {
		return
	}
	metrics.LearnerLoggedOut()
	// The LMS logout only blacklists the refresh token; the local session is
	// gone either way.
	if err := ls.auth.Logout(ctx); err != nil {
		s.logger.Warn("LMS logout failed", "session_id", ls.ID, "error", err)
	}
}
