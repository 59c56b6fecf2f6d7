// Package memory holds process-local repositories used when no database is
// configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/repositories"
)

type progressKey struct {
	learnerID, courseID, lessonID uint
}

type ProgressOutbox struct {
	mu     sync.Mutex
	nextID uint
	rows   map[progressKey]*models.PendingProgress
}

func NewProgressOutbox() repositories.ProgressOutboxRepository {
	return &ProgressOutbox{rows: make(map[progressKey]*models.PendingProgress)}
}

func (o *ProgressOutbox) Upsert(_ context.Context, pending *models.PendingProgress) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	key := progressKey{pending.LearnerID, pending.CourseID, pending.LessonID}
	if row, ok := o.rows[key]; ok {
		row.Attempts++
		row.LastError = pending.LastError
		row.UpdatedAt = now
		*pending = *row
		return nil
	}

	o.nextID++
	row := *pending
	row.ID = o.nextID
	if row.Attempts == 0 {
		row.Attempts = 1
	}
	row.CreatedAt, row.UpdatedAt = now, now
	o.rows[key] = &row
	*pending = row
	return nil
}

func (o *ProgressOutbox) ListByLearnerCourse(_ context.Context, learnerID, courseID uint) ([]*models.PendingProgress, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*models.PendingProgress
	for _, row := range o.rows {
		if row.LearnerID == learnerID && row.CourseID == courseID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (o *ProgressOutbox) Delete(_ context.Context, id uint) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, row := range o.rows {
		if row.ID == id {
			delete(o.rows, key)
			return nil
		}
	}
	return nil
}

type ProctoringEvents struct {
	mu     sync.Mutex
	nextID uint
	events []models.ProctoringEvent
}

func NewProctoringEvents() repositories.ProctoringEventRepository {
	return &ProctoringEvents{}
}

func (p *ProctoringEvents) Create(_ context.Context, event *models.ProctoringEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	event.ID = p.nextID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	p.events = append(p.events, *event)
	return nil
}

func (p *ProctoringEvents) ListBySession(_ context.Context, sessionID string) ([]*models.ProctoringEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*models.ProctoringEvent
	for i := range p.events {
		if p.events[i].SessionID == sessionID {
			cp := p.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (p *ProctoringEvents) CountByLearnerQuiz(_ context.Context, learnerID, quizID uint) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, e := range p.events {
		if e.LearnerID == learnerID && e.QuizID == quizID && e.Type.IsViolation() {
			n++
		}
	}
	return n, nil
}
