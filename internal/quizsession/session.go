// Package quizsession drives a single timed quiz attempt from load to grading.
package quizsession

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/SAP-F-2025/course-player/internal/models"
)

// Session is safe for concurrent use. State changes happen under mu; calls to
// the LMS and to hooks happen outside it.
type Session struct {
	quizID    uint
	source    QuizSource
	submitter Submitter
	cfg       Config
	hooks     Hooks

	ctx    context.Context
	cancel context.CancelFunc

	mu               sync.Mutex
	status           Status
	quiz             *models.Quiz
	index            int
	answers          map[uint]models.AnswerEntry
	secondsRemaining int
	violations       int
	result           *models.SubmissionResult
	lastTrigger      Trigger
	lastError        string
	loadError        string
	autoFailures     int
	manualRequired   bool
	loadStarted      bool
	closed           bool

	timerStop   chan struct{}
	timerGen    uint64
	retryTimer  *time.Timer
	watchers    map[int]context.CancelFunc
	nextWatcher int
}

func New(quizID uint, source QuizSource, submitter Submitter, cfg Config, hooks Hooks) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		quizID:    quizID,
		source:    source,
		submitter: submitter,
		cfg:       cfg.withDefaults(),
		hooks:     hooks,
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusLoading,
		answers:   make(map[uint]models.AnswerEntry),
		watchers:  make(map[int]context.CancelFunc),
	}
}

func (s *Session) QuizID() uint { return s.quizID }

// Load fetches the quiz and moves the session out of loading. A quiz the
// learner already completed finishes immediately without a submission.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.status != StatusLoading || s.loadStarted {
		s.mu.Unlock()
		return ErrAlreadyLoaded
	}
	s.loadStarted = true
	s.mu.Unlock()

	quiz, err := s.source.GetQuiz(ctx, s.quizID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil {
		s.status = StatusError
		s.loadError = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	s.quiz = quiz
	s.index = 0
	s.violations = 0
	if quiz.TimeLimitMinutes > 0 {
		s.secondsRemaining = quiz.TimeLimitMinutes * 60
	}
	if quiz.IsCompleted {
		s.status = StatusFinished
	} else {
		s.status = StatusPlaying
		if s.timedLocked() {
			s.startTimerLocked()
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.hooks.OnLoaded != nil {
		s.hooks.OnLoaded(snap)
	}
	if snap.Status == StatusFinished && s.hooks.OnFinished != nil {
		s.hooks.OnFinished(snap)
	}
	return nil
}

// RecordAnswer replaces any previous answer to the question.
func (s *Session) RecordAnswer(questionID uint, in AnswerInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acceptingInputLocked(); err != nil {
		return err
	}
	q, ok := s.quiz.Question(questionID)
	if !ok {
		return fmt.Errorf("%w: question %d", ErrUnknownQuestion, questionID)
	}

	var entry models.AnswerEntry
	if q.Type.UsesOptions() {
		if in.OptionID == nil || !q.HasOption(*in.OptionID) {
			return fmt.Errorf("%w: question %d expects one of its options", ErrInvalidAnswer, questionID)
		}
		id := *in.OptionID
		entry.SelectedOptionID = &id
	} else {
		if in.Text == nil {
			return fmt.Errorf("%w: question %d expects a text answer", ErrInvalidAnswer, questionID)
		}
		text := *in.Text
		entry.TextAnswer = &text
	}
	s.answers[questionID] = entry
	return nil
}

// Tick advances the countdown by one second. Reaching zero submits once.
func (s *Session) Tick() {
	s.mu.Lock()
	payload, fire := s.tickLocked()
	s.mu.Unlock()

	if fire {
		s.runAutoSubmit(TriggerTimeout, payload)
	}
}

// tickIfCurrent drops ticks from a timer that was stopped or replaced after
// the tick fired.
func (s *Session) tickIfCurrent(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || s.timerStop == nil {
		s.mu.Unlock()
		return
	}
	payload, fire := s.tickLocked()
	s.mu.Unlock()

	if fire {
		s.runAutoSubmit(TriggerTimeout, payload)
	}
}

func (s *Session) tickLocked() (models.Submission, bool) {
	if s.closed || s.status != StatusPlaying || s.secondsRemaining <= 0 {
		return models.Submission{}, false
	}
	s.secondsRemaining--
	if s.secondsRemaining > 0 || !s.autoAllowedLocked() {
		return models.Submission{}, false
	}
	return s.beginSubmitLocked(TriggerTimeout), true
}

// ReportViolation counts a focus-loss signal while playing. The signal that
// reaches the configured maximum forces a submission; later signals are
// rejected because the session is no longer playing.
func (s *Session) ReportViolation(kind models.ProctoringEventType) (Warning, error) {
	if !kind.IsViolation() {
		return Warning{}, fmt.Errorf("%w: %s", ErrUnknownViolation, kind)
	}

	s.mu.Lock()
	if err := s.acceptingInputLocked(); err != nil {
		w := Warning{Count: s.violations, Max: s.cfg.MaxViolations}
		s.mu.Unlock()
		return w, err
	}
	s.violations++
	w := Warning{Count: s.violations, Max: s.cfg.MaxViolations}
	var payload models.Submission
	if s.violations >= s.cfg.MaxViolations && s.autoAllowedLocked() {
		w.Forced = true
		payload = s.beginSubmitLocked(TriggerViolationLimit)
	}
	s.mu.Unlock()

	if s.hooks.OnViolation != nil {
		s.hooks.OnViolation(w, kind)
	}
	if w.Forced {
		s.runAutoSubmit(TriggerViolationLimit, payload)
	}
	return w, nil
}

// Watch feeds signals into ReportViolation until ctx is done, the channel is
// closed, the returned function is called or the session is closed.
func (s *Session) Watch(ctx context.Context, signals <-chan Signal) func() {
	wctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = cancel
	s.mu.Unlock()

	go func() {
		defer s.detachWatcher(id)
		for {
			select {
			case <-wctx.Done():
				return
			case sig, ok := <-signals:
				if !ok || wctx.Err() != nil {
					return
				}
				_, _ = s.ReportViolation(sig.Kind)
			}
		}
	}()

	return func() {
		cancel()
		s.detachWatcher(id)
	}
}

func (s *Session) detachWatcher(id int) {
	s.mu.Lock()
	if cancel, ok := s.watchers[id]; ok {
		cancel()
		delete(s.watchers, id)
	}
	s.mu.Unlock()
}

// Watchers reports how many signal sources are attached.
func (s *Session) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Submit sends the recorded answers for grading. Overlapping calls are
// rejected with ErrSubmitInFlight.
func (s *Session) Submit(ctx context.Context) (*models.SubmissionResult, error) {
	s.mu.Lock()
	if err := s.acceptingInputLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	payload := s.beginSubmitLocked(TriggerManual)
	s.mu.Unlock()

	return s.execute(ctx, TriggerManual, payload)
}

func (s *Session) Next() (int, error)     { return s.move(func(i int) int { return i + 1 }) }
func (s *Session) Previous() (int, error) { return s.move(func(i int) int { return i - 1 }) }

func (s *Session) GoTo(index int) (int, error) {
	return s.move(func(int) int { return index })
}

func (s *Session) move(step func(int) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acceptingInputLocked(); err != nil {
		return s.index, err
	}
	last := len(s.quiz.Questions) - 1
	if last < 0 {
		last = 0
	}
	s.index = min(max(step(s.index), 0), last)
	return s.index, nil
}

func (s *Session) ProgressPercent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close stops the timer, cancels a pending automatic retry and detaches all
// watchers. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.stopRetryLocked()
	s.detachAllLocked()
	s.cancel()
}

func (s *Session) acceptingInputLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.status == StatusSubmitting:
		return ErrSubmitInFlight
	case s.status != StatusPlaying:
		return ErrNotPlaying
	}
	return nil
}

func (s *Session) timedLocked() bool {
	return s.quiz != nil && s.quiz.TimeLimitMinutes > 0
}

// An automatic submission is attempted at most twice per session: the
// original trigger and one scheduled retry.
func (s *Session) autoAllowedLocked() bool {
	return !s.manualRequired && s.autoFailures < 2
}

func (s *Session) beginSubmitLocked(trigger Trigger) models.Submission {
	s.status = StatusSubmitting
	s.lastTrigger = trigger
	s.stopTimerLocked()
	s.stopRetryLocked()
	return s.payloadLocked()
}

// payloadLocked lists recorded answers in question order. Unanswered
// questions are left out.
func (s *Session) payloadLocked() models.Submission {
	sub := models.Submission{QuizID: s.quizID, Answers: make([]models.SubmittedAnswer, 0, len(s.answers))}
	for _, q := range s.quiz.Questions {
		entry, ok := s.answers[q.ID]
		if !ok {
			continue
		}
		sub.Answers = append(sub.Answers, models.SubmittedAnswer{
			QuestionID:       q.ID,
			SelectedOptionID: entry.SelectedOptionID,
			TextAnswer:       entry.TextAnswer,
		})
	}
	return sub
}

func (s *Session) runAutoSubmit(trigger Trigger, payload models.Submission) {
	if s.hooks.OnAutoSubmit != nil {
		s.hooks.OnAutoSubmit(trigger)
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SubmitTimeout)
	defer cancel()
	_, _ = s.execute(ctx, trigger, payload)
}

func (s *Session) execute(ctx context.Context, trigger Trigger, payload models.Submission) (*models.SubmissionResult, error) {
	result, err := s.submitter.SubmitQuiz(ctx, payload)

	s.mu.Lock()
	if s.closed {
		// The owner tore the session down while the request was in flight.
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if err != nil {
		s.status = StatusPlaying
		s.lastError = SubmitFailedMessage
		if trigger.Automatic() {
			s.autoFailures++
			if s.autoFailures == 1 {
				s.scheduleRetryLocked()
			} else {
				s.manualRequired = true
			}
		}
		if s.timedLocked() && s.secondsRemaining > 0 {
			s.startTimerLocked()
		}
		s.mu.Unlock()

		if s.hooks.OnSubmitFailed != nil {
			s.hooks.OnSubmitFailed(trigger, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	s.status = StatusFinished
	s.result = result
	s.lastError = ""
	s.manualRequired = false
	s.stopTimerLocked()
	s.stopRetryLocked()
	s.detachAllLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.hooks.OnSubmitted != nil {
		s.hooks.OnSubmitted(trigger, result)
	}
	if s.hooks.OnFinished != nil {
		s.hooks.OnFinished(snap)
	}
	return result, nil
}

func (s *Session) scheduleRetryLocked() {
	s.stopRetryLocked()
	s.retryTimer = time.AfterFunc(s.cfg.AutoRetryDelay, s.retry)
}

func (s *Session) retry() {
	s.mu.Lock()
	s.retryTimer = nil
	if s.closed || s.status != StatusPlaying || !s.autoAllowedLocked() {
		s.mu.Unlock()
		return
	}
	payload := s.beginSubmitLocked(TriggerRetry)
	s.mu.Unlock()

	s.runAutoSubmit(TriggerRetry, payload)
}

func (s *Session) stopRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Session) startTimerLocked() {
	if s.timerStop != nil {
		return
	}
	stop := make(chan struct{})
	s.timerStop = stop
	s.timerGen++
	gen := s.timerGen
	interval := s.cfg.TickInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tickIfCurrent(gen)
			}
		}
	}()
}

func (s *Session) stopTimerLocked() {
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
		s.timerGen++
	}
}

func (s *Session) detachAllLocked() {
	for id, cancel := range s.watchers {
		cancel()
		delete(s.watchers, id)
	}
}

func (s *Session) progressLocked() int {
	if s.quiz == nil || len(s.quiz.Questions) == 0 {
		return 0
	}
	return int(math.Round(float64(len(s.answers)) / float64(len(s.quiz.Questions)) * 100))
}

func (s *Session) snapshotLocked() Snapshot {
	answers := make(map[uint]models.AnswerEntry, len(s.answers))
	for id, entry := range s.answers {
		answers[id] = entry
	}
	snap := Snapshot{
		QuizID:               s.quizID,
		Status:               s.status,
		Quiz:                 s.quiz,
		CurrentQuestionIndex: s.index,
		Answers:              answers,
		AnsweredCount:        len(answers),
		ProgressPercent:      s.progressLocked(),
		Timed:                s.timedLocked(),
		SecondsRemaining:     s.secondsRemaining,
		ViolationCount:       s.violations,
		MaxViolations:        s.cfg.MaxViolations,
		LastTrigger:          s.lastTrigger,
		LastError:            s.lastError,
		LoadError:            s.loadError,
		ManualSubmitRequired: s.manualRequired,
		Result:               s.result,
	}
	if s.quiz != nil {
		snap.QuestionCount = len(s.quiz.Questions)
	}
	if snap.Timed {
		snap.Clock = FormatClock(s.secondsRemaining)
	}
	return snap
}
