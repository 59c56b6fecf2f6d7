// Package metrics exposes the player's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quizSessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "player_quiz_sessions_started_total",
			Help: "Total number of quiz sessions loaded",
		},
	)

	// outcome: success/failure, trigger: manual/timeout/violation_limit/auto_retry
	quizSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "player_quiz_submissions_total",
			Help: "Total number of quiz submissions by outcome and trigger",
		},
		[]string{"outcome", "trigger"},
	)

	quizViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "player_quiz_violations_total",
			Help: "Total number of proctoring violations counted",
		},
		[]string{"kind"},
	)

	activeQuizSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "player_quiz_sessions_active",
			Help: "Current number of open quiz sessions",
		},
	)

	activeLearners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "player_learner_sessions_active",
			Help: "Current number of logged in learner sessions",
		},
	)

	itemsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "player_items_completed_total",
			Help: "Total number of curriculum items completed",
		},
		[]string{"kind"},
	)

	progressSyncFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "player_progress_sync_failures_total",
			Help: "Total number of lesson completions the LMS did not acknowledge",
		},
	)

	lmsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "player_lms_request_duration_seconds",
			Help:    "Time spent waiting on the LMS API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
)

func QuizSessionOpened() {
	quizSessionsStarted.Inc()
	activeQuizSessions.Inc()
}

func QuizSessionClosed() { activeQuizSessions.Dec() }

func QuizSubmitted(trigger string, ok bool) {
	quizSubmissions.WithLabelValues(outcome(ok), trigger).Inc()
}

func Violation(kind string) { quizViolations.WithLabelValues(kind).Inc() }

func LearnerLoggedIn()  { activeLearners.Inc() }
func LearnerLoggedOut() { activeLearners.Dec() }

func ItemCompleted(kind string) { itemsCompleted.WithLabelValues(kind).Inc() }

func ProgressSyncFailed() { progressSyncFailures.Inc() }

func ObserveLMS(operation string, seconds float64, ok bool) {
	lmsRequestDuration.WithLabelValues(operation, outcome(ok)).Observe(seconds)
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
