package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SAP-F-2025/course-player/internal/apiclient"
	"github.com/SAP-F-2025/course-player/internal/cache"
	"github.com/SAP-F-2025/course-player/internal/metrics"
	"github.com/SAP-F-2025/course-player/internal/models"
)

// LMSClient is the learner-scoped view of the LMS API.
type LMSClient interface {
	GetCourse(ctx context.Context, courseID uint) (*models.Course, error)
	GetQuiz(ctx context.Context, quizID uint) (*models.Quiz, error)
	SubmitQuiz(ctx context.Context, submission models.Submission) (*models.SubmissionResult, error)
	MarkLessonComplete(ctx context.Context, lessonID uint) error
}

// AuthSession is satisfied by *apiclient.AuthSession.
type AuthSession interface {
	Learner() models.Learner
	Closed() bool
	Logout(ctx context.Context) error
	Close()
}

// Authenticator signs a learner in and returns the API bound to that login.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (AuthSession, LMSClient, error)
}

type apiAuthenticator struct {
	client *apiclient.Client
}

func NewAPIAuthenticator(client *apiclient.Client) Authenticator {
	return &apiAuthenticator{client: client}
}

func (a *apiAuthenticator) Login(ctx context.Context, username, password string) (AuthSession, LMSClient, error) {
	start := time.Now()
	auth, err := a.client.Login(ctx, username, password)
	metrics.ObserveLMS("login", time.Since(start).Seconds(), err == nil)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return auth, apiclient.NewLMS(a.client, auth), nil
}

// CachedLMS reads course and quiz payloads through the cache. Entries are
// per learner because both carry completion flags.
type CachedLMS struct {
	next      LMSClient
	cache     cache.CacheService
	learnerID uint
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedLMS(next LMSClient, cacheService cache.CacheService, learnerID uint, ttl time.Duration, logger *slog.Logger) *CachedLMS {
	return &CachedLMS{
		next:      next,
		cache:     cacheService,
		learnerID: learnerID,
		ttl:       ttl,
		logger:    logger.With("learner_id", learnerID),
	}
}

func (c *CachedLMS) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	key := cache.CourseKey(c.learnerID, courseID)
	var cached models.Course
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		c.logger.Debug("Course served from cache", "course_id", courseID)
		return &cached, nil
	}

	start := time.Now()
	course, err := c.next.GetCourse(ctx, courseID)
	metrics.ObserveLMS("get_course", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, course)
	return course, nil
}

func (c *CachedLMS) GetQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	key := cache.QuizKey(c.learnerID, quizID)
	var cached models.Quiz
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		c.logger.Debug("Quiz served from cache", "quiz_id", quizID)
		return &cached, nil
	}

	start := time.Now()
	quiz, err := c.next.GetQuiz(ctx, quizID)
	metrics.ObserveLMS("get_quiz", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, quiz)
	return quiz, nil
}

func (c *CachedLMS) SubmitQuiz(ctx context.Context, submission models.Submission) (*models.SubmissionResult, error) {
	start := time.Now()
	result, err := c.next.SubmitQuiz(ctx, submission)
	metrics.ObserveLMS("submit_quiz", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, cache.QuizKey(c.learnerID, submission.QuizID))
	return result, nil
}

func (c *CachedLMS) MarkLessonComplete(ctx context.Context, lessonID uint) error {
	start := time.Now()
	err := c.next.MarkLessonComplete(ctx, lessonID)
	metrics.ObserveLMS("mark_lesson_complete", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return err
	}
	c.invalidate(ctx, "")
	return nil
}

func (c *CachedLMS) store(ctx context.Context, key string, value interface{}) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("Failed to cache LMS response", "key", key, "error", err)
	}
}

// invalidate drops the learner's course entries and, when given, one more key.
func (c *CachedLMS) invalidate(ctx context.Context, key string) {
	if key != "" {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("Failed to invalidate cache entry", "key", key, "error", err)
		}
	}
	if err := c.cache.DeletePattern(ctx, cache.LearnerCoursePattern(c.learnerID)); err != nil {
		c.logger.Warn("Failed to invalidate course cache", "error", err)
	}
}
