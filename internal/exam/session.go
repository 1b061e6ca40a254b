// Package exam implements a single candidate's attempt at an exam as a state
// machine: INSTRUCTIONS -> IN_PROGRESS -> FINALIZED.
//
// Three triggers can end an attempt (the candidate confirming, the countdown
// reaching zero, the proctoring threshold being reached). They all funnel into
// one guarded finalize; the first one wins and the rest are no-ops. Events that
// arrive in the wrong phase are ignored rather than reported.
package exam

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/scoring"
)

var (
	ErrNoQuestions     = errors.New("exam has no questions")
	ErrInvalidDuration = errors.New("exam duration must be positive")
)

// Session is one attempt. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id           uuid.UUID
	exam         *model.Exam
	candidateID  int
	clock        clock.Clock
	signals      proctor.Source
	policy       scoring.Policy
	limit        int
	tickInterval time.Duration
	log          zerolog.Logger

	phase     model.Phase
	closed    bool
	current   int
	answers   map[int]int
	marked    map[int]struct{}
	remaining int
	monitor   *proctor.Monitor
	confirm   bool
	reason    model.FinalizeReason
	result    *model.Result

	stopTimer   func()
	unsubscribe func()

	seq       uint64
	pending   []Event
	nextObs   int
	observers map[int]func(Event)
}

// NewSession prepares an attempt at e. The session starts in INSTRUCTIONS;
// nothing runs until Start.
func NewSession(e *model.Exam, opts ...Option) (*Session, error) {
	if e == nil || len(e.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	o := options{
		clock:        clock.Real{},
		threshold:    proctor.DefaultThreshold,
		policy:       scoring.DefaultPolicy(),
		tickInterval: time.Second,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == uuid.Nil {
		o.id = uuid.New()
	}

	limit := e.Duration()
	if o.timeLimit != 0 {
		limit = o.timeLimit
	}
	if limit < time.Second {
		return nil, ErrInvalidDuration
	}

	return &Session{
		id:           o.id,
		exam:         e,
		candidateID:  o.candidateID,
		clock:        o.clock,
		signals:      o.signals,
		policy:       o.policy,
		limit:        int(limit / time.Second),
		tickInterval: o.tickInterval,
		log:          logger.Session(o.log, o.id.String(), e.ID.String()),
		phase:        model.PhaseInstructions,
		answers:      make(map[int]int),
		marked:       make(map[int]struct{}),
		remaining:    int(limit / time.Second),
		monitor:      proctor.NewMonitor(o.threshold),
		observers:    make(map[int]func(Event)),
	}, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

// Exam is the definition the session was created from. Callers must not modify it.
func (s *Session) Exam() *model.Exam { return s.exam }

func (s *Session) CandidateID() int { return s.candidateID }

// Start moves INSTRUCTIONS -> IN_PROGRESS, resets the attempt data, starts the
// countdown and subscribes to proctoring signals.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.unlock()

	if s.closed || s.phase != model.PhaseInstructions {
		return false
	}

	s.phase = model.PhaseInProgress
	s.current = 0
	s.answers = make(map[int]int)
	s.marked = make(map[int]struct{})
	s.remaining = s.limit
	s.confirm = false

	s.startTimerLocked()
	if s.signals != nil {
		s.unsubscribe = s.signals.Subscribe(s.handleSignal)
	}

	s.log.Info().Int("time_limit_s", s.limit).Int("questions", len(s.exam.Questions)).Msg("Session started")
	return true
}

// SelectAnswer sets the answer for the current question. Options outside the
// question's range are ignored.
func (s *Session) SelectAnswer(option int) bool {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() || !s.exam.Questions[s.current].HasOption(option) {
		return false
	}
	s.answers[s.current] = option
	return true
}

// ClearAnswer removes the answer for the current question.
func (s *Session) ClearAnswer() bool {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() {
		return false
	}
	if _, ok := s.answers[s.current]; !ok {
		return false
	}
	delete(s.answers, s.current)
	return true
}

// ToggleMark flips the review flag on the current question.
func (s *Session) ToggleMark() bool {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() {
		return false
	}
	if _, ok := s.marked[s.current]; ok {
		delete(s.marked, s.current)
	} else {
		s.marked[s.current] = struct{}{}
	}
	return true
}

// GoTo moves to question i. Out-of-range indices are rejected.
func (s *Session) GoTo(i int) bool {
	s.mu.Lock()
	defer s.unlock()
	return s.goToLocked(i)
}

func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.goToLocked(s.current + 1)
}

func (s *Session) Prev() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.goToLocked(s.current - 1)
}

func (s *Session) goToLocked(i int) bool {
	if !s.activeLocked() || i < 0 || i >= len(s.exam.Questions) {
		return false
	}
	s.current = i
	return true
}

// RequestFinalize opens the confirmation gate for a manual finish.
func (s *Session) RequestFinalize() bool {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() || s.confirm {
		return false
	}
	s.confirm = true
	return true
}

// CancelFinalize closes the confirmation gate.
func (s *Session) CancelFinalize() bool {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() || !s.confirm {
		return false
	}
	s.confirm = false
	return true
}

// ConfirmFinalize finalizes with FinalizeManual, but only after RequestFinalize.
func (s *Session) ConfirmFinalize() (model.Result, bool) {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() || !s.confirm {
		return s.resultLocked()
	}
	s.finalizeLocked(model.FinalizeManual)
	return s.result.Clone(), true
}

// Finalize ends the attempt and computes the Result. Only the first call that
// finds the session IN_PROGRESS does anything; it reports true. Every later
// call returns the stored Result (zero if there is none) and false.
func (s *Session) Finalize(reason model.FinalizeReason) (model.Result, bool) {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() {
		return s.resultLocked()
	}
	s.finalizeLocked(reason)
	return s.result.Clone(), true
}

// finalizeLocked freezes the attempt. Teardown runs before the lock is released
// so nothing can be counted against the session afterwards.
func (s *Session) finalizeLocked(reason model.FinalizeReason) {
	s.phase = model.PhaseFinalized
	s.reason = reason
	s.confirm = false
	s.teardownLocked()

	card := scoring.Grade(s.exam.Questions, s.answers)
	r := model.Result{
		Scorecard:        card,
		SessionID:        s.id,
		ExamID:           s.exam.ID,
		ExamTitle:        s.exam.Title,
		CandidateID:      s.candidateID,
		Reason:           reason,
		Violations:       s.monitor.Count(),
		RemainingSeconds: s.remaining,
		FinalizedAt:      s.clock.Now(),
	}
	s.policy.Apply(&r)
	s.result = &r

	s.log.Info().
		Str("reason", string(reason)).
		Int("score", r.Score).
		Int("total", r.Total).
		Int("violations", r.Violations).
		Int("remaining_s", r.RemainingSeconds).
		Msg("Session finalized")

	snapshot := r.Clone()
	s.emitLocked(Event{Kind: EventFinalized, RemainingSeconds: s.remaining, RemainingDisplay: FormatRemaining(s.remaining), Result: &snapshot})
}

// Close is the navigate-away path: it stops the countdown and drops the signal
// subscription without finalizing. A closed session ignores every operation.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.teardownLocked()
	s.log.Debug().Str("phase", string(s.phase)).Msg("Session closed")
}

func (s *Session) teardownLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *Session) activeLocked() bool {
	return !s.closed && s.phase == model.PhaseInProgress
}

// handleSignal is the proctor.Handler installed while IN_PROGRESS.
func (s *Session) handleSignal(sig proctor.Signal) proctor.Disposition {
	s.mu.Lock()
	defer s.unlock()

	if !s.activeLocked() {
		return proctor.Disposition{Block: sig.Kind.Blockable(), Count: s.monitor.Count(), Threshold: s.monitor.Threshold()}
	}

	d := s.monitor.Record(sig.Kind)
	s.log.Warn().Str("kind", string(sig.Kind)).Int("count", d.Count).Int("threshold", d.Threshold).Msg("Proctoring violation")
	s.emitLocked(Event{Kind: EventWarning, Signal: sig.Kind, Disposition: d})

	if d.Tripped {
		s.finalizeLocked(model.FinalizeViolations)
	}
	return d
}

// Phase returns the current phase.
func (s *Session) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// State returns a snapshot of the session.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make(map[int]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	marked := make([]int, 0, len(s.marked))
	for k := range s.marked {
		marked = append(marked, k)
	}
	sort.Ints(marked)

	return model.SessionState{
		SessionID:           s.id,
		ExamID:              s.exam.ID,
		Phase:               s.phase,
		CurrentIndex:        s.current,
		TotalQuestions:      len(s.exam.Questions),
		Answers:             answers,
		Marked:              marked,
		RemainingSeconds:    s.remaining,
		RemainingDisplay:    FormatRemaining(s.remaining),
		Violations:          s.monitor.Count(),
		ViolationThreshold:  s.monitor.Threshold(),
		ConfirmationPending: s.confirm,
		FinalizeReason:      string(s.reason),
	}
}

// Result returns the finalized Result, if any.
func (s *Session) Result() (model.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, _ := s.resultLocked()
	return r, s.result != nil
}

func (s *Session) resultLocked() (model.Result, bool) {
	if s.result == nil {
		return model.Result{}, false
	}
	return s.result.Clone(), false
}
