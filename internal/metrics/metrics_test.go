package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(quizSubmissions.WithLabelValues("failure", "timeout"))
	QuizSubmitted("timeout", false)
	assert.Equal(t, before+1, testutil.ToFloat64(quizSubmissions.WithLabelValues("failure", "timeout")))

	active := testutil.ToFloat64(activeQuizSessions)
	QuizSessionOpened()
	assert.Equal(t, active+1, testutil.ToFloat64(activeQuizSessions))
	QuizSessionClosed()
	assert.Equal(t, active, testutil.ToFloat64(activeQuizSessions))

	blur := testutil.ToFloat64(quizViolations.WithLabelValues("window_blur"))
	Violation("window_blur")
	assert.Equal(t, blur+1, testutil.ToFloat64(quizViolations.WithLabelValues("window_blur")))
}
