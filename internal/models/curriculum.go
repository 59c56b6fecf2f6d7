package models

import (
	"fmt"
	"strconv"
	"strings"
)

type ContentKind string

const (
	KindLesson ContentKind = "lesson"
	KindQuiz   ContentKind = "quiz"
)

func (k ContentKind) Valid() bool {
	return k == KindLesson || k == KindQuiz
}

// ItemRef identifies a curriculum entry. Lesson and quiz ids come from different
// tables, so the kind is part of the identity.
type ItemRef struct {
	Kind ContentKind `json:"kind"`
	ID   uint        `json:"id"`
}

func LessonRef(id uint) ItemRef { return ItemRef{Kind: KindLesson, ID: id} }
func QuizRef(id uint) ItemRef   { return ItemRef{Kind: KindQuiz, ID: id} }

func (r ItemRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ParseItemRef parses the "kind:id" form produced by String.
func ParseItemRef(s string) (ItemRef, error) {
	kind, idStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ItemRef{}, fmt.Errorf("invalid item reference %q", s)
	}
	ref := ItemRef{Kind: ContentKind(kind)}
	if !ref.Kind.Valid() {
		return ItemRef{}, fmt.Errorf("invalid item kind %q", kind)
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return ItemRef{}, fmt.Errorf("invalid item id %q: %w", idStr, err)
	}
	ref.ID = uint(id)
	return ref, nil
}

// ContentItem is one playable entry of a curriculum.
type ContentItem struct {
	Ref   ItemRef `json:"ref"`
	Title string  `json:"title"`
	Order int     `json:"order"`

	PrerequisiteLessonID *uint `json:"prerequisite_lesson_id,omitempty"`

	Completed bool `json:"completed"`
	Locked    bool `json:"locked"`

	// Lesson fields
	VideoURL    string `json:"video_url,omitempty"`
	PDFURL      string `json:"pdf_url,omitempty"`
	HTMLContent string `json:"html_content,omitempty"`
	ResourceURL string `json:"resource_url,omitempty"`

	// Quiz fields
	Description string `json:"description,omitempty"`
	QuizID      uint   `json:"quiz_id,omitempty"`
}

func (i ContentItem) IsQuiz() bool   { return i.Ref.Kind == KindQuiz }
func (i ContentItem) IsLesson() bool { return i.Ref.Kind == KindLesson }

type Curriculum struct {
	CourseID        uint          `json:"course_id"`
	Title           string        `json:"title"`
	Items           []ContentItem `json:"items"`
	ProgressPercent int           `json:"progress_percent"`
}
