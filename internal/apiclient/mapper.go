package apiclient

import (
	"strings"

	"github.com/SAP-F-2025/course-player/internal/models"
)

func (d courseDTO) toModel() *models.Course {
	course := &models.Course{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Lessons:     make([]models.Lesson, 0, len(d.Lessons)),
		Quizzes:     make([]models.QuizSummary, 0, len(d.Quizzes)),
	}
	for _, l := range d.Lessons {
		course.Lessons = append(course.Lessons, models.Lesson{
			ID:          l.ID,
			Title:       l.Title,
			Order:       deref(l.Order),
			HTMLContent: l.Content,
			VideoURL:    deref(l.VideoURL),
			PDFURL:      deref(l.PDFVersion),
			ResourceURL: deref(l.Resources),
			Completed:   l.Completed || l.IsCompleted,
		})
	}
	for _, q := range d.Quizzes {
		course.Quizzes = append(course.Quizzes, models.QuizSummary{
			ID:                   q.ID,
			Title:                q.Title,
			Description:          q.Description,
			PrerequisiteLessonID: q.PrerequisiteLesson,
			Completed:            q.Completed || q.IsCompleted,
		})
	}
	return course
}

func (d quizDTO) toModel() *models.Quiz {
	quiz := &models.Quiz{
		ID:                   d.ID,
		CourseID:             d.Course,
		Title:                d.Title,
		Description:          d.Description,
		PrerequisiteLessonID: d.PrerequisiteLesson,
		TimeLimitMinutes:     max(deref(d.TimeLimit), 0),
		IsCompleted:          d.IsCompleted,
		Questions:            make([]models.Question, 0, len(d.Questions)),
	}
	for _, q := range d.Questions {
		question := models.Question{
			ID:     q.ID,
			Text:   q.Text,
			Type:   questionType(q.QuestionType),
			Points: q.Points,
		}
		for _, o := range q.Options {
			question.Options = append(question.Options, models.Option{ID: o.ID, Text: o.Text})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}

func questionType(s string) models.QuestionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tf", "true_false", "truefalse":
		return models.QuestionTrueFalse
	case "short", "short_answer", "text":
		return models.QuestionShortAnswer
	default:
		return models.QuestionMultipleChoice
	}
}

// newSubmissionRequest sends an empty text for option answers and a null
// option for text answers, which is what the grading endpoint expects.
func newSubmissionRequest(sub models.Submission) submissionRequest {
	req := submissionRequest{Quiz: sub.QuizID, Answers: make([]answerDTO, 0, len(sub.Answers))}
	for _, a := range sub.Answers {
		req.Answers = append(req.Answers, answerDTO{
			Question:       a.QuestionID,
			SelectedOption: a.SelectedOptionID,
			TextAnswer:     deref(a.TextAnswer),
		})
	}
	return req
}

func (d submissionResponse) toModel() *models.SubmissionResult {
	result := &models.SubmissionResult{
		ID:          d.ID,
		QuizID:      d.Quiz,
		Score:       d.Score,
		SubmittedAt: d.SubmittedAt,
		Answers:     make([]models.AnswerResult, 0, len(d.Answers)),
	}
	for _, a := range d.Answers {
		result.Answers = append(result.Answers, models.AnswerResult{
			QuestionID:       a.Question,
			SelectedOptionID: a.SelectedOption,
			TextAnswer:       a.TextAnswer,
			IsCorrect:        a.IsCorrect,
		})
	}
	return result
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
