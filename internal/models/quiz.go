package models

import "time"

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "mcq"
	QuestionTrueFalse      QuestionType = "tf"
	QuestionShortAnswer    QuestionType = "short"
)

// UsesOptions reports whether answers to this type select an option.
func (t QuestionType) UsesOptions() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

type Option struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID      uint         `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Points  int          `json:"points"`
	Options []Option     `json:"options,omitempty"`
}

func (q Question) HasOption(id uint) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

type Quiz struct {
	ID                   uint       `json:"id"`
	CourseID             uint       `json:"course_id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	PrerequisiteLessonID *uint      `json:"prerequisite_lesson_id,omitempty"`
	TimeLimitMinutes     int        `json:"time_limit_minutes"`
	IsCompleted          bool       `json:"is_completed"`
	Questions            []Question `json:"questions"`
}

func (q *Quiz) Question(id uint) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// AnswerEntry holds the learner's current answer to one question. Only one of
// the two fields is meaningful, depending on the question type.
type AnswerEntry struct {
	SelectedOptionID *uint   `json:"selected_option_id"`
	TextAnswer       *string `json:"text_answer"`
}

type SubmittedAnswer struct {
	QuestionID       uint
	SelectedOptionID *uint
	TextAnswer       *string
}

type Submission struct {
	QuizID  uint
	Answers []SubmittedAnswer
}

type AnswerResult struct {
	QuestionID       uint   `json:"question_id"`
	SelectedOptionID *uint  `json:"selected_option_id,omitempty"`
	TextAnswer       string `json:"text_answer,omitempty"`
	IsCorrect        bool   `json:"is_correct"`
}

type SubmissionResult struct {
	ID          uint           `json:"id"`
	QuizID      uint           `json:"quiz_id"`
	Score       float64        `json:"score"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Answers     []AnswerResult `json:"answers"`
}
