package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/course-player/internal/apiclient"
	"github.com/SAP-F-2025/course-player/internal/curriculum"
	apperrors "github.com/SAP-F-2025/course-player/internal/errors"
	"github.com/SAP-F-2025/course-player/internal/quizsession"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")
	ErrUpstream         = errors.New("lms request failed")

	// Learner session errors
	ErrInvalidCredentials     = errors.New("invalid username or password")
	ErrLearnerSessionNotFound = errors.New("learner session not found")
	ErrLearnerSessionExpired  = errors.New("learner session expired, sign in again")

	// Curriculum errors
	ErrCourseNotFound   = errors.New("course not found")
	ErrCourseLoadFailed = errors.New("failed to load course")
	ErrCourseNotLoaded  = errors.New("course has not been loaded in this session")
	ErrItemNotFound     = errors.New("curriculum item not found")
	ErrItemLocked       = errors.New("curriculum item is locked")

	ErrQuizCompletionByGrading = errors.New("quizzes are completed by submitting them")

	// Quiz session errors
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuizLoadFailed      = errors.New("failed to load quiz")
	ErrQuizSessionNotFound = errors.New("quiz session not found")
	ErrQuizNotInCourse     = errors.New("quiz is not part of the course")
)

// ===== CUSTOM ERROR TYPES =====

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// PermissionError is returned when a learner session touches a resource owned
// by another learner session.
type PermissionError struct {
	SessionID  string `json:"session_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: session %s cannot %s %s %s",
		pe.SessionID, pe.Action, pe.Resource, pe.ResourceID)
}

func NewPermissionError(sessionID, resourceID, resource, action string) *PermissionError {
	return &PermissionError{
		SessionID:  sessionID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
	}
}

// ===== ERROR HELPERS =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCourseNotFound) ||
		errors.Is(err, ErrCourseNotLoaded) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuizSessionNotFound) ||
		errors.Is(err, ErrQuizNotInCourse) ||
		errors.Is(err, curriculum.ErrItemNotFound)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrLearnerSessionNotFound) ||
		errors.Is(err, ErrLearnerSessionExpired) ||
		errors.Is(err, apiclient.ErrSessionExpired)
}

func IsForbidden(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || quizsession.IsInputError(err) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrItemLocked) ||
		errors.Is(err, ErrQuizCompletionByGrading) ||
		quizsession.IsStateError(err)
}

// IsUpstream reports failures talking to the LMS.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrCourseLoadFailed) ||
		errors.Is(err, ErrQuizLoadFailed) ||
		errors.Is(err, quizsession.ErrSubmitFailed) ||
		errors.Is(err, quizsession.ErrLoadFailed)
}
