package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/course-player/internal/models"
)

func signToken(t *testing.T, userID uint, suffix string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    userID,
		"username":   "ada",
		"email":      "ada@example.com",
		"name":       "Ada Lovelace",
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"role":       "student",
		"exp":        time.Now().Add(time.Hour).Unix(),
		"jti":        suffix,
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

// fakeLMS serves the subset of the LMS API used by the player.
type fakeLMS struct {
	t *testing.T

	mu           sync.Mutex
	access       string
	refreshToken string
	refreshCalls int
	rejectOnce   bool
	lastBody     map[string][]byte
	lastAuth     map[string]string
}

func newFakeLMS(t *testing.T) (*fakeLMS, *httptest.Server) {
	f := &fakeLMS{
		t:            t,
		access:       signToken(t, 7, "a1"),
		refreshToken: "refresh-1",
		lastBody:     make(map[string][]byte),
		lastAuth:     make(map[string]string),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeLMS) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.lastBody[r.URL.Path] = body
	f.lastAuth[r.URL.Path] = r.Header.Get("Authorization")
	access := f.access
	f.mu.Unlock()

	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch r.URL.Path {
	case "/api/auth/login/":
		var req loginRequest
		_ = json.Unmarshal(body, &req)
		if req.Password != "secret" {
			writeJSON(http.StatusUnauthorized, map[string]string{"detail": "No active account"})
			return
		}
		writeJSON(http.StatusOK, tokenResponse{Access: access, Refresh: f.refreshToken})
		return
	case "/api/auth/token/refresh/":
		var req refreshRequest
		_ = json.Unmarshal(body, &req)
		f.mu.Lock()
		f.refreshCalls++
		ok := req.Refresh == f.refreshToken
		if ok {
			f.access = signToken(f.t, 7, "a2")
			f.refreshToken = "refresh-2"
		}
		resp := tokenResponse{Access: f.access, Refresh: f.refreshToken}
		f.mu.Unlock()
		if !ok {
			writeJSON(http.StatusUnauthorized, map[string]string{"detail": "Token is invalid"})
			return
		}
		writeJSON(http.StatusOK, resp)
		return
	case "/api/auth/logout/":
		w.WriteHeader(http.StatusResetContent)
		return
	}

	f.mu.Lock()
	reject := f.rejectOnce
	f.rejectOnce = false
	f.mu.Unlock()
	if reject || r.Header.Get("Authorization") != "Bearer "+access {
		writeJSON(http.StatusUnauthorized, map[string]string{"detail": "Given token not valid"})
		return
	}

	switch r.URL.Path {
	case "/api/courses/3/":
		_, _ = io.WriteString(w, `{
			"id": 3, "title": "Go", "description": "intro",
			"lessons": [
				{"id": 1, "title": "Basics", "content": "<p>hi</p>", "video_url": "https://v/1", "order": 2, "completed": true},
				{"id": 2, "title": "Types", "content": "", "video_url": null, "pdf_version": "https://p/2", "order": null}
			],
			"quizzes": [
				{"id": 1, "title": "Check", "description": "d", "prerequisite_lesson": 1, "is_completed": true},
				{"id": 4, "title": "Final", "description": "", "prerequisite_lesson": null}
			]
		}`)
	case "/api/quiz/5/":
		_, _ = io.WriteString(w, `{
			"id": 5, "course": 3, "title": "Check", "description": "", "prerequisite_lesson": 1,
			"time_limit": null,
			"questions": [
				{"id": 10, "text": "2+2?", "question_type": "mcq", "points": 1, "options": [{"id": 100, "text": "4", "is_correct": true}, {"id": 101, "text": "5"}]},
				{"id": 11, "text": "Go has generics", "question_type": "tf", "points": 1, "options": [{"id": 110, "text": "True"}, {"id": 111, "text": "False"}]},
				{"id": 12, "text": "Name a channel op", "question_type": "short", "points": 2, "short_answer": "send", "options": []}
			]
		}`)
	case "/api/submission/":
		writeJSON(http.StatusCreated, map[string]any{
			"id": 99, "quiz": 5, "student": 7, "score": 2.5,
			"submitted_at": "2026-10-19T10:00:00Z",
			"answers": []map[string]any{
				{"id": 1, "question": 10, "selected_option": 100, "text_answer": "", "is_correct": true},
			},
		})
	case "/api/progress/":
		writeJSON(http.StatusCreated, map[string]any{"id": 1})
	default:
		writeJSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

func (f *fakeLMS) body(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out map[string]any
	require.NoError(f.t, json.Unmarshal(f.lastBody[path], &out))
	return out
}

func login(t *testing.T, srv *httptest.Server) (*Client, *AuthSession) {
	t.Helper()
	client := NewClient(Config{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second})
	auth, err := client.Login(context.Background(), "ada", "secret")
	require.NoError(t, err)
	return client, auth
}

func TestLogin(t *testing.T) {
	_, srv := newFakeLMS(t)

	t.Run("decodes claims", func(t *testing.T) {
		_, auth := login(t, srv)
		learner := auth.Learner()
		assert.Equal(t, uint(7), learner.ID)
		assert.Equal(t, "ada", learner.Username)
		assert.Equal(t, models.RoleStudent, learner.Role)
		assert.WithinDuration(t, time.Now().Add(time.Hour), learner.TokenExpiresAt, time.Minute)
	})

	t.Run("bad credentials", func(t *testing.T) {
		client := NewClient(Config{BaseURL: srv.URL + "/api/"})
		_, err := client.Login(context.Background(), "ada", "wrong")
		assert.True(t, IsUnauthorized(err))
	})
}

func TestLMS_GetCourse(t *testing.T) {
	_, srv := newFakeLMS(t)
	client, auth := login(t, srv)
	lms := NewLMS(client, auth)

	course, err := lms.GetCourse(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "Go", course.Title)
	require.Len(t, course.Lessons, 2)
	assert.Equal(t, 2, course.Lessons[0].Order)
	assert.True(t, course.Lessons[0].Completed)
	assert.Equal(t, "<p>hi</p>", course.Lessons[0].HTMLContent)
	assert.Equal(t, 0, course.Lessons[1].Order)
	assert.Equal(t, "https://p/2", course.Lessons[1].PDFURL)
	assert.Empty(t, course.Lessons[1].VideoURL)

	require.Len(t, course.Quizzes, 2)
	require.NotNil(t, course.Quizzes[0].PrerequisiteLessonID)
	assert.Equal(t, uint(1), *course.Quizzes[0].PrerequisiteLessonID)
	assert.True(t, course.Quizzes[0].Completed)
	assert.Nil(t, course.Quizzes[1].PrerequisiteLessonID)

	_, err = lms.GetCourse(context.Background(), 404)
	assert.True(t, IsNotFound(err))
}

func TestLMS_GetQuiz(t *testing.T) {
	_, srv := newFakeLMS(t)
	client, auth := login(t, srv)

	quiz, err := NewLMS(client, auth).GetQuiz(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 0, quiz.TimeLimitMinutes)
	assert.Equal(t, uint(3), quiz.CourseID)
	require.Len(t, quiz.Questions, 3)
	assert.Equal(t, models.QuestionMultipleChoice, quiz.Questions[0].Type)
	assert.Equal(t, models.QuestionTrueFalse, quiz.Questions[1].Type)
	assert.Equal(t, models.QuestionShortAnswer, quiz.Questions[2].Type)
	assert.True(t, quiz.Questions[0].HasOption(101))
}

func TestLMS_SubmitQuiz(t *testing.T) {
	fake, srv := newFakeLMS(t)
	client, auth := login(t, srv)

	option := uint(100)
	text := "send"
	result, err := NewLMS(client, auth).SubmitQuiz(context.Background(), models.Submission{
		QuizID: 5,
		Answers: []models.SubmittedAnswer{
			{QuestionID: 10, SelectedOptionID: &option},
			{QuestionID: 12, TextAnswer: &text},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(99), result.ID)
	assert.Equal(t, 2.5, result.Score)
	require.Len(t, result.Answers, 1)
	assert.True(t, result.Answers[0].IsCorrect)

	sent := fake.body("/api/submission/")
	assert.Equal(t, float64(5), sent["quiz"])
	answers := sent["answers"].([]any)
	require.Len(t, answers, 2)
	assert.Equal(t, map[string]any{"question": float64(10), "selected_option": float64(100), "text_answer": ""}, answers[0])
	assert.Equal(t, map[string]any{"question": float64(12), "selected_option": nil, "text_answer": "send"}, answers[1])
}

func TestLMS_MarkLessonComplete(t *testing.T) {
	fake, srv := newFakeLMS(t)
	client, auth := login(t, srv)

	require.NoError(t, NewLMS(client, auth).MarkLessonComplete(context.Background(), 2))
	assert.Equal(t, map[string]any{"lesson": float64(2)}, fake.body("/api/progress/"))
}

func TestLMS_RefreshesOnUnauthorized(t *testing.T) {
	fake, srv := newFakeLMS(t)
	client, auth := login(t, srv)
	before, _ := auth.AccessToken()

	fake.mu.Lock()
	fake.rejectOnce = true
	fake.mu.Unlock()

	_, err := NewLMS(client, auth).GetQuiz(context.Background(), 5)
	require.NoError(t, err)

	after, _ := auth.AccessToken()
	assert.NotEqual(t, before, after)
	fake.mu.Lock()
	assert.Equal(t, 1, fake.refreshCalls)
	assert.Equal(t, "Bearer "+after, fake.lastAuth["/api/quiz/5/"])
	fake.mu.Unlock()
}

func TestLMS_FailedRefreshClosesSession(t *testing.T) {
	fake, srv := newFakeLMS(t)
	client, auth := login(t, srv)

	fake.mu.Lock()
	fake.rejectOnce = true
	fake.refreshToken = "rotated-elsewhere"
	fake.mu.Unlock()

	_, err := NewLMS(client, auth).GetCourse(context.Background(), 3)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, auth.Closed())

	_, err = NewLMS(client, auth).GetCourse(context.Background(), 3)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestAuthSession_Logout(t *testing.T) {
	fake, srv := newFakeLMS(t)
	_, auth := login(t, srv)

	require.NoError(t, auth.Logout(context.Background()))
	assert.True(t, auth.Closed())
	assert.Equal(t, map[string]any{"refresh": "refresh-1"}, fake.body("/api/auth/logout/"))

	require.NoError(t, auth.Logout(context.Background()))
	_, err := auth.AccessToken()
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestParseClaims(t *testing.T) {
	_, err := parseClaims("not-a-token")
	assert.Error(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"username": "x"})
	signed, err := token.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = parseClaims(signed)
	assert.Error(t, err)

	token = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "12"})
	signed, _ = token.SignedString([]byte("k"))
	claims, err := parseClaims(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(12), claims.UserID)
}
