package apiclient

import "time"

// Wire formats of the LMS API. They never leave this package.

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type courseDTO struct {
	ID          uint             `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Lessons     []lessonDTO      `json:"lessons"`
	Quizzes     []quizSummaryDTO `json:"quizzes"`
}

type lessonDTO struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	VideoURL    *string `json:"video_url"`
	PDFVersion  *string `json:"pdf_version"`
	Resources   *string `json:"resources"`
	Order       *int    `json:"order"`
	Completed   bool    `json:"completed"`
	IsCompleted bool    `json:"is_completed"`
}

type quizSummaryDTO struct {
	ID                 uint   `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	PrerequisiteLesson *uint  `json:"prerequisite_lesson"`
	Completed          bool   `json:"completed"`
	IsCompleted        bool   `json:"is_completed"`
}

type quizDTO struct {
	ID                 uint          `json:"id"`
	Course             uint          `json:"course"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	PrerequisiteLesson *uint         `json:"prerequisite_lesson"`
	TimeLimit          *int          `json:"time_limit"`
	IsCompleted        bool          `json:"is_completed"`
	Questions          []questionDTO `json:"questions"`
}

type questionDTO struct {
	ID           uint        `json:"id"`
	Text         string      `json:"text"`
	QuestionType string      `json:"question_type"`
	Points       int         `json:"points"`
	Options      []optionDTO `json:"options"`
}

type optionDTO struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type submissionRequest struct {
	Quiz    uint        `json:"quiz"`
	Answers []answerDTO `json:"answers"`
}

type answerDTO struct {
	Question       uint   `json:"question"`
	SelectedOption *uint  `json:"selected_option"`
	TextAnswer     string `json:"text_answer"`
}

type submissionResponse struct {
	ID          uint              `json:"id"`
	Quiz        uint              `json:"quiz"`
	Student     uint              `json:"student"`
	Score       float64           `json:"score"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Answers     []answerResultDTO `json:"answers"`
}

type answerResultDTO struct {
	ID             uint   `json:"id"`
	Question       uint   `json:"question"`
	SelectedOption *uint  `json:"selected_option"`
	TextAnswer     string `json:"text_answer"`
	IsCorrect      bool   `json:"is_correct"`
}

type progressRequest struct {
	Lesson uint `json:"lesson"`
}
