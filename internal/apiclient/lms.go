package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/course-player/internal/models"
)

// LMS is the learner-scoped API: every call carries the session's access
// token and is retried once after a token refresh when the LMS answers 401.
type LMS struct {
	client *Client
	auth   *AuthSession
}

func NewLMS(client *Client, auth *AuthSession) *LMS {
	return &LMS{client: client, auth: auth}
}

func (l *LMS) Session() *AuthSession { return l.auth }

func (l *LMS) GetCourse(ctx context.Context, courseID uint) (*models.Course, error) {
	var dto courseDTO
	if err := l.authorized(ctx, http.MethodGet, fmt.Sprintf("courses/%d/", courseID), nil, &dto); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

func (l *LMS) GetQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	var dto quizDTO
	if err := l.authorized(ctx, http.MethodGet, fmt.Sprintf("quiz/%d/", quizID), nil, &dto); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

func (l *LMS) SubmitQuiz(ctx context.Context, submission models.Submission) (*models.SubmissionResult, error) {
	var resp submissionResponse
	if err := l.authorized(ctx, http.MethodPost, "submission/", newSubmissionRequest(submission), &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

func (l *LMS) MarkLessonComplete(ctx context.Context, lessonID uint) error {
	return l.authorized(ctx, http.MethodPost, "progress/", progressRequest{Lesson: lessonID}, nil)
}

func (l *LMS) authorized(ctx context.Context, method, path string, in, out any) error {
	token, err := l.auth.AccessToken()
	if err != nil {
		return err
	}
	err = l.client.do(ctx, method, path, token, in, out)
	if !IsUnauthorized(err) {
		return err
	}

	if err := l.auth.refreshIfStale(ctx, token); err != nil {
		return err
	}
	token, err = l.auth.AccessToken()
	if err != nil {
		return err
	}
	return l.client.do(ctx, method, path, token, in, out)
}
