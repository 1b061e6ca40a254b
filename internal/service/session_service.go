package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/report"
	"github.com/stemsi/exstem-proctor/internal/scoring"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrNotSessionOwner     = errors.New("session belongs to another candidate")
	ErrSessionNotFinalized = errors.New("session is not finalized")
)

const sinkTimeout = 3 * time.Second

// ExamLoader returns a published exam with its answer key.
type ExamLoader interface {
	LoadExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// SessionConfig tunes every session the service creates.
type SessionConfig struct {
	Threshold    int
	TickInterval time.Duration
	Policy       scoring.Policy
	// Retention is how long a finalized or abandoned session stays reachable.
	Retention time.Duration
}

// Outcome reports whether an operation changed the session, and its state after.
type Outcome struct {
	Applied bool               `json:"applied"`
	State   model.SessionState `json:"state"`
	Result  *model.Result      `json:"result,omitempty"`
}

type sessionEntry struct {
	session     *exam.Session
	signals     *proctor.Emitter
	candidateID int
	openedAt    time.Time
}

type openKey struct {
	examID      uuid.UUID
	candidateID int
}

// SessionService is the in-memory registry of exam sessions. Attempts are never
// persisted; only violations and final results leave the process, via the sink.
type SessionService struct {
	exams ExamLoader
	sink  ResultSink
	clock clock.Clock
	cfg   SessionConfig
	log   zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
	current  map[openKey]uuid.UUID
}

// NewSessionService creates a new SessionService.
func NewSessionService(exams ExamLoader, sink ResultSink, clk clock.Clock, cfg SessionConfig, log zerolog.Logger) *SessionService {
	if sink == nil {
		sink = NopResultSink{}
	}
	return &SessionService{
		exams:    exams,
		sink:     sink,
		clock:    clk,
		cfg:      cfg,
		log:      log.With().Str("component", "session_service").Logger(),
		sessions: make(map[uuid.UUID]*sessionEntry),
		current:  make(map[openKey]uuid.UUID),
	}
}

// Open returns the candidate's unfinished session for the exam, or creates a
// new one in INSTRUCTIONS.
func (s *SessionService) Open(ctx context.Context, examID uuid.UUID, candidateID int) (model.SessionState, error) {
	key := openKey{examID: examID, candidateID: candidateID}

	s.mu.RLock()
	if id, ok := s.current[key]; ok {
		if e := s.sessions[id]; e != nil && isOpen(e.session) {
			s.mu.RUnlock()
			return e.session.State(), nil
		}
	}
	s.mu.RUnlock()

	def, err := s.exams.LoadExam(ctx, examID)
	if err != nil {
		return model.SessionState{}, err
	}

	entry, err := s.newEntry(def, candidateID)
	if err != nil {
		return model.SessionState{}, err
	}

	s.mu.Lock()
	// Another request may have opened one while the exam was loading.
	if id, ok := s.current[key]; ok {
		if e := s.sessions[id]; e != nil && isOpen(e.session) {
			s.mu.Unlock()
			return e.session.State(), nil
		}
	}
	s.sessions[entry.session.ID()] = entry
	s.current[key] = entry.session.ID()
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", entry.session.ID().String()).
		Str("exam_id", examID.String()).
		Int("candidate_id", candidateID).
		Msg("Session opened")
	return entry.session.State(), nil
}

func (s *SessionService) newEntry(def *model.Exam, candidateID int) (*sessionEntry, error) {
	signals := proctor.NewEmitter()
	sess, err := exam.NewSession(def,
		exam.WithClock(s.clock),
		exam.WithSignals(signals),
		exam.WithThreshold(s.cfg.Threshold),
		exam.WithTickInterval(s.cfg.TickInterval),
		exam.WithPolicy(s.cfg.Policy),
		exam.WithCandidate(candidateID),
		exam.WithLogger(s.log),
	)
	if err != nil {
		return nil, err
	}

	sess.Observe(s.forward(sess, candidateID))
	return &sessionEntry{session: sess, signals: signals, candidateID: candidateID, openedAt: s.clock.Now()}, nil
}

// forward relays counted violations and the final Result to the sink.
func (s *SessionService) forward(sess *exam.Session, candidateID int) func(exam.Event) {
	log := s.log.With().Str("session_id", sess.ID().String()).Logger()

	return func(ev exam.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()

		switch ev.Kind {
		case exam.EventWarning:
			if !ev.Disposition.Counted {
				return
			}
			v := model.Violation{
				SessionID:   ev.SessionID,
				ExamID:      ev.ExamID,
				CandidateID: candidateID,
				Kind:        string(ev.Signal),
				Count:       ev.Disposition.Count,
				Message:     ev.Disposition.Warning,
				RecordedAt:  ev.At,
			}
			if err := s.sink.RecordViolation(ctx, v); err != nil {
				log.Error().Err(err).Msg("Failed to record violation")
			}
		case exam.EventFinalized:
			if err := s.sink.RecordResult(ctx, *ev.Result); err != nil {
				log.Error().Err(err).Msg("Failed to record result")
			}
		}
	}
}

func (s *SessionService) get(id uuid.UUID, candidateID int) (*sessionEntry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.candidateID != candidateID {
		return nil, ErrNotSessionOwner
	}
	return e, nil
}

// apply runs op against the owned session and reports the resulting state.
func (s *SessionService) apply(id uuid.UUID, candidateID int, op func(*exam.Session) bool) (Outcome, error) {
	e, err := s.get(id, candidateID)
	if err != nil {
		return Outcome{}, err
	}
	applied := op(e.session)
	return Outcome{Applied: applied, State: e.session.State()}, nil
}

func (s *SessionService) Start(id uuid.UUID, candidateID int) (Outcome, error) {
	return s.apply(id, candidateID, (*exam.Session).Start)
}

func (s *SessionService) SelectAnswer(id uuid.UUID, candidateID, option int) (Outcome, error) {
	return s.apply(id, candidateID, func(sess *exam.Session) bool { return sess.SelectAnswer(option) })
}

func (s *SessionService) ClearAnswer(id uuid.UUID, candidateID int) (Outcome, error) {
	return s.apply(id, candidateID, (*exam.Session).ClearAnswer)
}

func (s *SessionService) ToggleMark(id uuid.UUID, candidateID int) (Outcome, error) {
	return s.apply(id, candidateID, (*exam.Session).ToggleMark)
}

func (s *SessionService) GoTo(id uuid.UUID, candidateID, index int) (Outcome, error) {
	return s.apply(id, candidateID, func(sess *exam.Session) bool { return sess.GoTo(index) })
}

func (s *SessionService) Next(id uuid.UUID, candidateID int) (Outcome, error) {
	return s.apply(id, candidateID, (*exam.Session).Next)
}

func (s *SessionService) Prev(id uuid.UUID, candidateID int) (Outcome, error) {
	return s.apply(id, candidateID, (*exam.Session).Prev)
}

func (s *SessionService) RequestFinalize(id uuid.UUID, candidateID int) (Outcome, error) {
	return s.apply(id, candidateID, (*exam.Session).RequestFinalize)
}

func (s *SessionService) CancelFinalize(id uuid.UUID, candidateID int) (Outcome, error) {
	return s.apply(id, candidateID, (*exam.Session).CancelFinalize)
}

// ConfirmFinalize ends the session manually once the candidate confirmed.
func (s *SessionService) ConfirmFinalize(id uuid.UUID, candidateID int) (Outcome, error) {
	e, err := s.get(id, candidateID)
	if err != nil {
		return Outcome{}, err
	}
	res, applied := e.session.ConfirmFinalize()
	return s.finalOutcome(e, res, applied), nil
}

// Finalize ends a session regardless of the confirmation gate. Administrators
// use it to stop an attempt; the reason is recorded as manual.
func (s *SessionService) Finalize(id uuid.UUID) (Outcome, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Outcome{}, ErrSessionNotFound
	}
	res, applied := e.session.Finalize(model.FinalizeManual)
	return s.finalOutcome(e, res, applied), nil
}

func (s *SessionService) finalOutcome(e *sessionEntry, res model.Result, applied bool) Outcome {
	out := Outcome{Applied: applied, State: e.session.State()}
	if _, ok := e.session.Result(); ok {
		out.Result = &res
	}
	return out
}

// Signal reports a proctoring signal from the candidate's client. Outside an
// active session it is not counted, but blockable kinds are still blocked.
func (s *SessionService) Signal(id uuid.UUID, candidateID int, kind proctor.SignalKind) (proctor.Disposition, error) {
	if _, err := proctor.ParseKind(string(kind)); err != nil {
		return proctor.Disposition{}, err
	}
	e, err := s.get(id, candidateID)
	if err != nil {
		return proctor.Disposition{}, err
	}

	if ds := e.signals.Emit(kind); len(ds) > 0 {
		return ds[0], nil
	}
	st := e.session.State()
	return proctor.Disposition{Block: kind.Blockable(), Count: st.Violations, Threshold: st.ViolationThreshold}, nil
}

func (s *SessionService) State(id uuid.UUID, candidateID int) (model.SessionState, error) {
	e, err := s.get(id, candidateID)
	if err != nil {
		return model.SessionState{}, err
	}
	return e.session.State(), nil
}

// Paper is the candidate-facing exam paper of the session.
func (s *SessionService) Paper(id uuid.UUID, candidateID int) (*model.ExamPaper, error) {
	e, err := s.get(id, candidateID)
	if err != nil {
		return nil, err
	}
	return e.session.Exam().Paper(), nil
}

func (s *SessionService) Result(id uuid.UUID, candidateID int) (model.Result, error) {
	e, err := s.get(id, candidateID)
	if err != nil {
		return model.Result{}, err
	}
	res, ok := e.session.Result()
	if !ok {
		return model.Result{}, ErrSessionNotFinalized
	}
	return res, nil
}

// Report renders the finalized Result to w.
func (s *SessionService) Report(id uuid.UUID, candidateID int, format report.Format, w io.Writer) error {
	res, err := s.Result(id, candidateID)
	if err != nil {
		return err
	}
	return report.Render(w, format, res, s.clock.Now())
}

// Retake closes a finalized session and opens a fresh one for the same exam.
func (s *SessionService) Retake(ctx context.Context, id uuid.UUID, candidateID int) (model.SessionState, error) {
	e, err := s.get(id, candidateID)
	if err != nil {
		return model.SessionState{}, err
	}
	if e.session.Phase() != model.PhaseFinalized {
		return model.SessionState{}, ErrSessionNotFinalized
	}

	examID := e.session.Exam().ID
	s.remove(id)
	return s.Open(ctx, examID, candidateID)
}

// Close is the navigate-away path: the session stops without a result and is forgotten.
func (s *SessionService) Close(id uuid.UUID, candidateID int) error {
	if _, err := s.get(id, candidateID); err != nil {
		return err
	}
	s.remove(id)
	return nil
}

func (s *SessionService) remove(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		key := openKey{examID: e.session.Exam().ID, candidateID: e.candidateID}
		if s.current[key] == id {
			delete(s.current, key)
		}
	}
	s.mu.Unlock()

	if ok {
		e.session.Close()
		s.log.Debug().Str("session_id", id.String()).Msg("Session removed")
	}
}

// Subscribe streams the session's events to fn until cancel is called.
func (s *SessionService) Subscribe(id uuid.UUID, candidateID int, fn func(exam.Event)) (cancel func(), err error) {
	e, err := s.get(id, candidateID)
	if err != nil {
		return nil, err
	}
	return e.session.Observe(fn), nil
}

// ActiveByExam returns snapshots of every registered session of an exam.
func (s *SessionService) ActiveByExam(examID uuid.UUID) []CandidateSnapshot {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0)
	for _, e := range s.sessions {
		if e.session.Exam().ID == examID {
			entries = append(entries, e)
		}
	}
	s.mu.RUnlock()

	out := make([]CandidateSnapshot, len(entries))
	for i, e := range entries {
		out[i] = CandidateSnapshot{CandidateID: e.candidateID, OpenedAt: e.openedAt, State: e.session.State()}
	}
	return out
}

// CandidateSnapshot is one session as seen by the live monitor.
type CandidateSnapshot struct {
	CandidateID int                `json:"candidate_id"`
	OpenedAt    time.Time          `json:"opened_at"`
	State       model.SessionState `json:"state"`
}

// Sweep forgets finalized sessions older than the retention window and
// sessions that never started within it. In-progress sessions are kept; their
// own timer ends them.
func (s *SessionService) Sweep() int {
	if s.cfg.Retention <= 0 {
		return 0
	}
	cutoff := s.clock.Now().Add(-s.cfg.Retention)

	s.mu.RLock()
	var stale []uuid.UUID
	for id, e := range s.sessions {
		switch e.session.Phase() {
		case model.PhaseFinalized:
			if res, ok := e.session.Result(); ok && res.FinalizedAt.Before(cutoff) {
				stale = append(stale, id)
			}
		case model.PhaseInstructions:
			if e.openedAt.Before(cutoff) {
				stale = append(stale, id)
			}
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.remove(id)
	}
	if len(stale) > 0 {
		s.log.Info().Int("removed", len(stale)).Msg("Swept stale sessions")
	}
	return len(stale)
}

// Len is the number of sessions held in memory.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown closes every session without finalizing it.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[uuid.UUID]*sessionEntry)
	s.current = make(map[openKey]uuid.UUID)
	s.mu.Unlock()

	for _, e := range entries {
		e.session.Close()
	}
	s.log.Info().Int("sessions", len(entries)).Msg("Session registry shut down")
}

func isOpen(sess *exam.Session) bool {
	return !sess.Closed() && sess.Phase() != model.PhaseFinalized
}
