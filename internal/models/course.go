package models

// Course is the learner's view of a course as returned by the LMS, already mapped
// from the wire format.
type Course struct {
	ID          uint
	Title       string
	Description string
	Lessons     []Lesson
	Quizzes     []QuizSummary
}

type Lesson struct {
	ID          uint
	Title       string
	Order       int
	HTMLContent string
	VideoURL    string
	PDFURL      string
	ResourceURL string
	Completed   bool
}

type QuizSummary struct {
	ID                   uint
	Title                string
	Description          string
	PrerequisiteLessonID *uint
	Completed            bool
}
