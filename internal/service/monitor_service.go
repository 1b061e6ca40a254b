package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultStore is the persisted side of results and violation logs.
type ResultStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ResultSummary, int, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (int, error)
	ViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
}

// MonitorService builds the live view of an exam for administrators.
type MonitorService struct {
	sessions *SessionService
	results  ResultStore
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(sessions *SessionService, results ResultStore) *MonitorService {
	return &MonitorService{sessions: sessions, results: results}
}

// CandidateProgress is one candidate's row on the monitor.
type CandidateProgress struct {
	CandidateID      int         `json:"candidate_id"`
	SessionID        uuid.UUID   `json:"session_id"`
	Phase            model.Phase `json:"phase"`
	Answered         int         `json:"answered"`
	TotalQuestions   int         `json:"total_questions"`
	RemainingSeconds int         `json:"remaining_seconds"`
	Violations       int         `json:"violations"`
	LoggedViolations int64       `json:"logged_violations"`
}

// MonitorStats aggregates the candidates of one exam.
type MonitorStats struct {
	Joined           int   `json:"total_joined"`
	InProgress       int   `json:"total_in_progress"`
	Finalized        int   `json:"total_finalized"`
	TotalViolations  int64 `json:"total_violations"`
	PersistedResults int   `json:"persisted_results"`
}

// ExamProgressSnapshot is what the monitor stream sends as "snapshot" and "refresh".
type ExamProgressSnapshot struct {
	Stats      MonitorStats        `json:"stats"`
	Candidates []CandidateProgress `json:"candidates"`
}

// GetExamProgress merges the in-memory sessions with the violation log and
// result table. The two database reads run concurrently; both are best-effort
// since the live sessions are already known.
func (s *MonitorService) GetExamProgress(ctx context.Context, examID uuid.UUID) (*ExamProgressSnapshot, error) {
	var (
		logged    map[int]int64
		persisted int
		loggedErr error
		countErr  error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		logged, loggedErr = s.results.ViolationCounts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		persisted, countErr = s.results.CountByExam(ctx, examID)
	}()

	live := s.sessions.ActiveByExam(examID)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if loggedErr != nil {
		logged = nil
	}

	snap := &ExamProgressSnapshot{Candidates: make([]CandidateProgress, 0, len(live))}
	if countErr == nil {
		snap.Stats.PersistedResults = persisted
	}

	for _, c := range live {
		st := c.State
		row := CandidateProgress{
			CandidateID:      c.CandidateID,
			SessionID:        st.SessionID,
			Phase:            st.Phase,
			Answered:         st.Answered(),
			TotalQuestions:   st.TotalQuestions,
			RemainingSeconds: st.RemainingSeconds,
			Violations:       st.Violations,
			LoggedViolations: logged[c.CandidateID],
		}
		snap.Candidates = append(snap.Candidates, row)

		snap.Stats.Joined++
		switch st.Phase {
		case model.PhaseInProgress:
			snap.Stats.InProgress++
		case model.PhaseFinalized:
			snap.Stats.Finalized++
		}
	}
	for _, n := range logged {
		snap.Stats.TotalViolations += n
	}

	sort.Slice(snap.Candidates, func(i, j int) bool {
		return snap.Candidates[i].CandidateID < snap.Candidates[j].CandidateID
	})
	return snap, nil
}

// ListResults returns one page of persisted results for an exam.
func (s *MonitorService) ListResults(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ResultSummary, int, error) {
	return s.results.ListByExam(ctx, examID, limit, offset)
}
