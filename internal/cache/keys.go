package cache

import "fmt"

const keyPrefix = "course-player"

// Course payloads carry per-learner completion flags, so they are keyed by
// learner.
func CourseKey(learnerID, courseID uint) string {
	return fmt.Sprintf("%s:learner:%d:course:%d", keyPrefix, learnerID, courseID)
}

func LearnerPattern(learnerID uint) string {
	return fmt.Sprintf("%s:learner:%d:*", keyPrefix, learnerID)
}

func QuizKey(learnerID, quizID uint) string {
	return fmt.Sprintf("%s:learner:%d:quiz:%d", keyPrefix, learnerID, quizID)
}

func LearnerCoursePattern(learnerID uint) string {
	return fmt.Sprintf("%s:learner:%d:course:*", keyPrefix, learnerID)
}
