// Package curriculum turns a course's lessons and quizzes into an ordered,
// prerequisite-gated playlist and keeps its lock and progress state consistent.
package curriculum

import (
	"errors"
	"math"
	"sort"

	"github.com/SAP-F-2025/course-player/internal/models"
)

var ErrItemNotFound = errors.New("curriculum item not found")

// Build sequences a course: lessons by order, each followed by the quizzes that
// require it, then the quizzes without a usable prerequisite.
func Build(course models.Course) models.Curriculum {
	lessons := make([]models.ContentItem, 0, len(course.Lessons))
	lessonIDs := make(map[uint]struct{}, len(course.Lessons))
	for _, l := range course.Lessons {
		lessons = append(lessons, models.ContentItem{
			Ref:         models.LessonRef(l.ID),
			Title:       l.Title,
			Order:       l.Order,
			Completed:   l.Completed,
			VideoURL:    l.VideoURL,
			PDFURL:      l.PDFURL,
			HTMLContent: l.HTMLContent,
			ResourceURL: l.ResourceURL,
		})
		lessonIDs[l.ID] = struct{}{}
	}

	quizzes := make([]models.ContentItem, 0, len(course.Quizzes))
	for _, q := range course.Quizzes {
		quizzes = append(quizzes, models.ContentItem{
			Ref:                  models.QuizRef(q.ID),
			Title:                q.Title,
			Description:          q.Description,
			QuizID:               q.ID,
			PrerequisiteLessonID: q.PrerequisiteLessonID,
			Completed:            q.Completed,
			Locked:               true,
		})
	}

	// order values are not unique in practice
	sort.SliceStable(lessons, func(i, j int) bool {
		return lessons[i].Order < lessons[j].Order
	})

	anchored := make(map[uint][]models.ContentItem)
	var standalone []models.ContentItem
	for _, q := range quizzes {
		if q.PrerequisiteLessonID != nil {
			if _, ok := lessonIDs[*q.PrerequisiteLessonID]; ok {
				anchored[*q.PrerequisiteLessonID] = append(anchored[*q.PrerequisiteLessonID], q)
				continue
			}
		}
		standalone = append(standalone, q)
	}

	items := make([]models.ContentItem, 0, len(lessons)+len(quizzes))
	for _, lesson := range lessons {
		items = append(items, lesson)
		items = append(items, anchored[lesson.Ref.ID]...)
		// a duplicated lesson id keeps its quizzes after the first copy only
		delete(anchored, lesson.Ref.ID)
	}
	items = append(items, standalone...)

	items = RecomputeLocks(items)
	return models.Curriculum{
		CourseID:        course.ID,
		Title:           course.Title,
		Items:           items,
		ProgressPercent: Progress(items),
	}
}

// RecomputeLocks derives lock state from position and completion only. The
// first item is always open; any other item opens once its predecessor is
// completed. The input slice is not modified.
func RecomputeLocks(items []models.ContentItem) []models.ContentItem {
	out := make([]models.ContentItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Locked = i > 0 && !out[i-1].Completed
	}
	return out
}

// Progress is the rounded percentage of completed items, 0 for an empty list.
func Progress(items []models.ContentItem) int {
	if len(items) == 0 {
		return 0
	}
	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(items)) * 100))
}

// MarkCompleted returns a copy of c with ref completed and locks and progress
// recomputed. Marking an already completed item again yields an equal value.
func MarkCompleted(c models.Curriculum, ref models.ItemRef) (models.Curriculum, error) {
	idx, _, ok := Find(c, ref)
	if !ok {
		return c, ErrItemNotFound
	}
	items := make([]models.ContentItem, len(c.Items))
	copy(items, c.Items)
	items[idx].Completed = true

	next := c
	next.Items = RecomputeLocks(items)
	next.ProgressPercent = Progress(next.Items)
	return next, nil
}

func Find(c models.Curriculum, ref models.ItemRef) (int, models.ContentItem, bool) {
	for i, item := range c.Items {
		if item.Ref == ref {
			return i, item, true
		}
	}
	return -1, models.ContentItem{}, false
}

// Next returns the entry that follows ref in sequence order.
func Next(c models.Curriculum, ref models.ItemRef) (models.ContentItem, bool) {
	idx, _, ok := Find(c, ref)
	if !ok || idx+1 >= len(c.Items) {
		return models.ContentItem{}, false
	}
	return c.Items[idx+1], true
}

// FirstUnfinished picks where a learner resumes: the first item not yet
// completed, or the first item when everything is done.
func FirstUnfinished(c models.Curriculum) (models.ContentItem, bool) {
	if len(c.Items) == 0 {
		return models.ContentItem{}, false
	}
	for _, item := range c.Items {
		if !item.Completed {
			return item, true
		}
	}
	return c.Items[0], true
}

func IsComplete(c models.Curriculum) bool {
	if len(c.Items) == 0 {
		return false
	}
	for _, item := range c.Items {
		if !item.Completed {
			return false
		}
	}
	return true
}
