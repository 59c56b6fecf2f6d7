package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/course-player/internal/cache"
	"github.com/SAP-F-2025/course-player/internal/events"
	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/quizsession"
	"github.com/SAP-F-2025/course-player/internal/repositories"
	"github.com/SAP-F-2025/course-player/internal/repositories/memory"
	"github.com/SAP-F-2025/course-player/internal/validator"
)

type MockLMS struct {
	mock.Mock
}

func (m *MockLMS) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	args := m.Called(ctx, courseID)
	course, _ := args.Get(0).(*models.Course)
	return course, args.Error(1)
}

func (m *MockLMS) GetQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	args := m.Called(ctx, quizID)
	quiz, _ := args.Get(0).(*models.Quiz)
	return quiz, args.Error(1)
}

func (m *MockLMS) SubmitQuiz(ctx context.Context, submission models.Submission) (*models.SubmissionResult, error) {
	args := m.Called(ctx, submission)
	result, _ := args.Get(0).(*models.SubmissionResult)
	return result, args.Error(1)
}

func (m *MockLMS) MarkLessonComplete(ctx context.Context, lessonID uint) error {
	return m.Called(ctx, lessonID).Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	return m.Called(ctx, key, dest).Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockCache) DeletePattern(ctx context.Context, pattern string) error {
	return m.Called(ctx, pattern).Error(0)
}

type fakeAuthSession struct {
	learner models.Learner

	mu        sync.Mutex
	closed    bool
	logouts   int
	logoutErr error
}

func (f *fakeAuthSession) Learner() models.Learner { return f.learner }

func (f *fakeAuthSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeAuthSession) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.closed = true
	return f.logoutErr
}

func (f *fakeAuthSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeAuthSession) expire() { f.Close() }

// stubAuthenticator hands out a fresh fake auth session per login, all sharing
// one LMS mock.
type stubAuthenticator struct {
	lms *MockLMS
	err error

	mu       sync.Mutex
	sessions []*fakeAuthSession
	nextID   uint
}

func (a *stubAuthenticator) Login(_ context.Context, username, _ string) (AuthSession, LMSClient, error) {
	if a.err != nil {
		return nil, nil, a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	auth := &fakeAuthSession{learner: models.Learner{
		ID:       a.nextID,
		Username: username,
		Role:     models.RoleStudent,
	}}
	a.sessions = append(a.sessions, auth)
	return auth, a.lms, nil
}

func (a *stubAuthenticator) last() *fakeAuthSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[len(a.sessions)-1]
}

type testEnv struct {
	lms        *MockLMS
	auth       *stubAuthenticator
	publisher  *events.MockEventPublisher
	outbox     repositories.ProgressOutboxRepository
	proctoring repositories.ProctoringEventRepository

	learners LearnerService
	player   PlayerService
	quizzes  QuizService
	reports  ReportService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := discardLogger()
	v := validator.New()

	env := &testEnv{
		lms:        &MockLMS{},
		publisher:  events.NewMockEventPublisher(logger),
		outbox:     memory.NewProgressOutbox(),
		proctoring: memory.NewProctoringEvents(),
	}
	env.auth = &stubAuthenticator{lms: env.lms}
	env.learners = NewLearnerService(env.auth, cache.NewNoopCache(), time.Minute, logger, v)
	env.player = NewPlayerService(env.learners, env.outbox, env.publisher, logger)
	env.quizzes = NewQuizService(env.learners, env.player, env.proctoring, env.publisher, quizsession.Config{
		MaxViolations:  2,
		TickInterval:   time.Hour,
		AutoRetryDelay: 10 * time.Millisecond,
		SubmitTimeout:  time.Second,
	}, logger, v)
	env.reports = NewReportService(env.learners, env.player, logger)

	t.Cleanup(func() { env.learners.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()
	resp, err := e.learners.Login(context.Background(), &LoginRequest{Username: username, Password: "secret"})
	require.NoError(t, err)
	return resp.SessionID
}

func uintPtr(v uint) *uint       { return &v }
func stringPtr(v string) *string { return &v }

// testCourse yields the curriculum [lesson:1, quiz:10, lesson:2].
func testCourse() *models.Course {
	return &models.Course{
		ID:    3,
		Title: "Go Basics",
		Lessons: []models.Lesson{
			{ID: 2, Title: "Interfaces", Order: 2},
			{ID: 1, Title: "Types", Order: 1},
		},
		Quizzes: []models.QuizSummary{
			{ID: 10, Title: "Types quiz", PrerequisiteLessonID: uintPtr(1)},
		},
	}
}

func testQuiz() *models.Quiz {
	return &models.Quiz{
		ID:               10,
		CourseID:         3,
		Title:            "Types quiz",
		TimeLimitMinutes: 5,
		Questions: []models.Question{
			{ID: 101, Type: models.QuestionMultipleChoice, Points: 1, Options: []models.Option{{ID: 1}, {ID: 2}}},
			{ID: 102, Type: models.QuestionShortAnswer, Points: 2},
		},
	}
}
