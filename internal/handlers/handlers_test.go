package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/course-player/internal/apiclient"
	"github.com/SAP-F-2025/course-player/internal/cache"
	"github.com/SAP-F-2025/course-player/internal/events"
	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/quizsession"
	"github.com/SAP-F-2025/course-player/internal/repositories/memory"
	"github.com/SAP-F-2025/course-player/internal/services"
	"github.com/SAP-F-2025/course-player/internal/utils"
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

type stubAuth struct {
	learner models.Learner
	closed  bool
}

func (s *stubAuth) Learner() models.Learner      { return s.learner }
func (s *stubAuth) Closed() bool                 { return s.closed }
func (s *stubAuth) Logout(context.Context) error { s.closed = true; return nil }
func (s *stubAuth) Close()                       { s.closed = true }

type stubAuthenticator struct {
	lms *MockLMS
}

func (a *stubAuthenticator) Login(_ context.Context, username, password string) (services.AuthSession, services.LMSClient, error) {
	if password != "secret" {
		return nil, nil, services.ErrInvalidCredentials
	}
	return &stubAuth{learner: models.Learner{ID: 9, Username: username, Role: models.RoleStudent}}, a.lms, nil
}

type testServer struct {
	router *gin.Engine
	lms    *MockLMS
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validator.New()
	lms := &MockLMS{}

	learners := services.NewLearnerService(&stubAuthenticator{lms: lms}, cache.NewNoopCache(), time.Minute, slogger, v)
	publisher := events.NewMockEventPublisher(slogger)
	player := services.NewPlayerService(learners, memory.NewProgressOutbox(), publisher, slogger)
	quizzes := services.NewQuizService(learners, player, memory.NewProctoringEvents(), publisher, quizsession.Config{
		MaxViolations:  2,
		TickInterval:   time.Hour,
		AutoRetryDelay: 10 * time.Millisecond,
		SubmitTimeout:  time.Second,
	}, slogger, v)
	reports := services.NewReportService(learners, player, slogger)
	t.Cleanup(func() { learners.Shutdown(context.Background()) })

	hm := NewHandlerManager(Services{
		Learners: learners,
		Player:   player,
		Quizzes:  quizzes,
		Reports:  reports,
	}, utils.NewSlogLogger(slogger))

	return &testServer{router: NewRouter(hm, utils.NewSlogLogger(slogger), nil), lms: lms}
}

func (s *testServer) do(t *testing.T, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(PlayerSessionHeader, session)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "ana", "password": "secret"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp services.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.SessionID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func uintPtr(v uint) *uint { return &v }

func testCourse() *models.Course {
	return &models.Course{
		ID:    3,
		Title: "Go Basics",
		Lessons: []models.Lesson{
			{ID: 1, Title: "Types", Order: 1},
			{ID: 2, Title: "Interfaces", Order: 2},
		},
		Quizzes: []models.QuizSummary{
			{ID: 10, Title: "Types quiz", PrerequisiteLessonID: uintPtr(1)},
		},
	}
}

func testQuiz() *models.Quiz {
	return &models.Quiz{
		ID:               10,
		Title:            "Types quiz",
		TimeLimitMinutes: 2,
		Questions: []models.Question{
			{ID: 101, Type: models.QuestionTrueFalse, Points: 1, Options: []models.Option{{ID: 1}, {ID: 2}}},
		},
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t)

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing username", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"password": "secret"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, "validation_failed", resp.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "ana", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("login, me, logout", func(t *testing.T) {
		session := s.login(t)

		w := s.do(t, http.MethodGet, "/api/v1/auth/me", session, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var learner models.Learner
		decode(t, w, &learner)
		assert.Equal(t, "ana", learner.Username)

		w = s.do(t, http.MethodPost, "/api/v1/auth/logout", session, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, http.MethodGet, "/api/v1/auth/me", session, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("session header required", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/courses/3", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var resp ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, "session_required", resp.Code)

		w = s.do(t, http.MethodGet, "/api/v1/courses/3", "nope", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCourseRoutes(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t)
	s.lms.On("GetCourse", mock.Anything, uint(3)).Return(testCourse(), nil)
	s.lms.On("GetCourse", mock.Anything, uint(4)).Return(nil, &apiclient.APIError{StatusCode: 404})
	s.lms.On("MarkLessonComplete", mock.Anything, uint(1)).Return(nil)

	w := s.do(t, http.MethodGet, "/api/v1/courses/4", session, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/courses/3/curriculum", session, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "curriculum before load")

	w = s.do(t, http.MethodGet, "/api/v1/courses/abc", session, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/courses/3", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view services.CourseView
	decode(t, w, &view)
	require.Len(t, view.Curriculum.Items, 3)
	assert.Equal(t, models.QuizRef(10), view.Curriculum.Items[1].Ref)
	assert.Equal(t, models.LessonRef(1), view.Active.Ref)

	w = s.do(t, http.MethodPost, "/api/v1/courses/3/items/quiz:10/select", session, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/courses/3/items/video:1/select", session, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/courses/3/items/lesson:99/complete", session, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/courses/3/items/lesson:1/complete", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result services.CompletionResult
	decode(t, w, &result)
	assert.True(t, result.Synced)
	assert.Equal(t, models.QuizRef(10), result.Active.Ref)

	w = s.do(t, http.MethodPost, "/api/v1/courses/3/items/quiz:10/select", session, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/courses/3/items/quiz:10/complete", session, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	var errResp ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, "quiz_requires_submission", errResp.Code)

	w = s.do(t, http.MethodGet, "/api/v1/courses/3/curriculum", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.False(t, view.Curriculum.Items[1].Completed)
	assert.True(t, view.Curriculum.Items[2].Locked)

	w = s.do(t, http.MethodGet, "/api/v1/courses/3/report.xlsx", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "course-3-progress.xlsx")
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestQuizRoutes(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t)
	course := testCourse()
	course.Lessons[0].Completed = true
	s.lms.On("GetCourse", mock.Anything, uint(3)).Return(course, nil)
	s.lms.On("GetQuiz", mock.Anything, uint(10)).Return(testQuiz(), nil)
	s.lms.On("SubmitQuiz", mock.Anything, mock.Anything).Return(&models.SubmissionResult{ID: 5, QuizID: 10, Score: 1}, nil).Once()

	w := s.do(t, http.MethodGet, "/api/v1/courses/3", session, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/quiz-sessions", session, gin.H{"course_id": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/quiz-sessions", session, gin.H{"course_id": 3, "quiz_id": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view services.QuizSessionView
	decode(t, w, &view)
	assert.Equal(t, quizsession.StatusPlaying, view.Status)
	assert.Equal(t, "2:00", view.Clock)
	base := "/api/v1/quiz-sessions/" + view.ID

	w = s.do(t, http.MethodPut, base+"/answers/101", session, gin.H{"selected_option_id": 2})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, 1, view.AnsweredCount)

	w = s.do(t, http.MethodPut, base+"/answers/555", session, gin.H{"selected_option_id": 2})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, base+"/next", session, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, base+"/violations", session, gin.H{"kind": "visibility_lost"})
	require.Equal(t, http.StatusOK, w.Code)
	var warn services.ViolationResponse
	decode(t, w, &warn)
	assert.False(t, warn.Warning.Forced)

	w = s.do(t, http.MethodPost, base+"/violations", session, gin.H{"kind": "window_blur"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &warn)
	assert.True(t, warn.Warning.Forced)
	assert.Equal(t, quizsession.StatusFinished, warn.Session.Status)

	w = s.do(t, http.MethodPost, base+"/submit", session, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/courses/3/curriculum", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var course3 services.CourseView
	decode(t, w, &course3)
	assert.True(t, course3.Curriculum.Items[1].Completed)

	w = s.do(t, http.MethodDelete, base, session, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, base, session, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuizSignalStream(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t)
	course := testCourse()
	course.Lessons[0].Completed = true
	s.lms.On("GetCourse", mock.Anything, uint(3)).Return(course, nil)
	s.lms.On("GetQuiz", mock.Anything, uint(10)).Return(testQuiz(), nil)
	s.lms.On("SubmitQuiz", mock.Anything, mock.Anything).Return(&models.SubmissionResult{ID: 6, QuizID: 10}, nil).Once()

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/courses/3", session, nil).Code)
	w := s.do(t, http.MethodPost, "/api/v1/quiz-sessions", session, gin.H{"course_id": 3, "quiz_id": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view services.QuizSessionView
	decode(t, w, &view)

	srv := httptest.NewServer(s.router)
	defer srv.Close()
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/quiz-sessions/"

	t.Run("handshake requires a session", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsBase+view.ID+"/signals", nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown quiz session is rejected before upgrading", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsBase+"missing/signals?session="+session, nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("signals count as violations", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsBase+view.ID+"/signals?session="+session, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(gin.H{"kind": "copy_paste"}))
		var errResp ErrorResponse
		require.NoError(t, conn.ReadJSON(&errResp))
		assert.Equal(t, "invalid_input", errResp.Code)

		require.NoError(t, conn.WriteJSON(gin.H{"kind": "visibility_lost"}))
		require.NoError(t, conn.WriteJSON(gin.H{"kind": "window_blur"}))

		assert.Eventually(t, func() bool {
			w := s.do(t, http.MethodGet, "/api/v1/quiz-sessions/"+view.ID, session, nil)
			var current services.QuizSessionView
			return w.Code == http.StatusOK &&
				json.Unmarshal(w.Body.Bytes(), &current) == nil &&
				current.Status == quizsession.StatusFinished
		}, 2*time.Second, 20*time.Millisecond)
		s.lms.AssertNumberOfCalls(t, "SubmitQuiz", 1)
	})
}
