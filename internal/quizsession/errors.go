package quizsession

import "errors"

var (
	ErrNotPlaying       = errors.New("quiz session is not accepting input")
	ErrSubmitInFlight   = errors.New("quiz submission already in progress")
	ErrSessionClosed    = errors.New("quiz session closed")
	ErrAlreadyLoaded    = errors.New("quiz session already loaded")
	ErrUnknownQuestion  = errors.New("question does not belong to this quiz")
	ErrInvalidAnswer    = errors.New("answer does not match question type")
	ErrUnknownViolation = errors.New("unknown proctoring signal")
	ErrLoadFailed       = errors.New("failed to load quiz")
	ErrSubmitFailed     = errors.New("failed to submit quiz")
)

// SubmitFailedMessage is shown to the learner after a failed submission.
const SubmitFailedMessage = "Failed to submit answers. Please try again."

func IsInputError(err error) bool {
	return errors.Is(err, ErrUnknownQuestion) || errors.Is(err, ErrInvalidAnswer) || errors.Is(err, ErrUnknownViolation)
}

func IsStateError(err error) bool {
	return errors.Is(err, ErrNotPlaying) || errors.Is(err, ErrSubmitInFlight) ||
		errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrAlreadyLoaded)
}
