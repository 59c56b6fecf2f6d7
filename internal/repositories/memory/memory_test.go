package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/course-player/internal/models"
)

func TestProgressOutbox(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressOutbox()

	first := &models.PendingProgress{LearnerID: 1, CourseID: 3, LessonID: 10, LastError: "timeout"}
	require.NoError(t, repo.Upsert(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, 1, first.Attempts)

	again := &models.PendingProgress{LearnerID: 1, CourseID: 3, LessonID: 10, LastError: "502"}
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 2, again.Attempts)

	require.NoError(t, repo.Upsert(ctx, &models.PendingProgress{LearnerID: 1, CourseID: 3, LessonID: 11}))
	require.NoError(t, repo.Upsert(ctx, &models.PendingProgress{LearnerID: 2, CourseID: 3, LessonID: 10}))

	rows, err := repo.ListByLearnerCourse(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, uint(10), rows[0].LessonID)
	assert.Equal(t, "502", rows[0].LastError)
	assert.Equal(t, uint(11), rows[1].LessonID)

	require.NoError(t, repo.Delete(ctx, first.ID))
	rows, _ = repo.ListByLearnerCourse(ctx, 1, 3)
	require.Len(t, rows, 1)
	assert.Equal(t, uint(11), rows[0].LessonID)
}

func TestProctoringEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewProctoringEvents()

	for _, e := range []*models.ProctoringEvent{
		{SessionID: "s1", LearnerID: 1, QuizID: 5, Type: models.EventWindowBlur, ViolationCount: 1},
		{SessionID: "s1", LearnerID: 1, QuizID: 5, Type: models.EventVisibilityLost, ViolationCount: 2},
		{SessionID: "s1", LearnerID: 1, QuizID: 5, Type: models.EventAutoSubmit},
		{SessionID: "s2", LearnerID: 2, QuizID: 5, Type: models.EventWindowBlur, ViolationCount: 1},
	} {
		require.NoError(t, repo.Create(ctx, e))
		assert.NotZero(t, e.ID)
	}

	events, err := repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, models.EventAutoSubmit, events[2].Type)

	n, err := repo.CountByLearnerQuiz(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
