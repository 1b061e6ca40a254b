package model

import (
	"time"

	"github.com/google/uuid"
)

// Band is a proficiency tier derived from the score percentage.
type Band string

const (
	BandExpert       Band = "Expert"
	BandIntermediate Band = "Intermediate"
	BandBeginner     Band = "Beginner"
	// BandUndefined is used when there is nothing to grade (zero questions).
	BandUndefined Band = ""
)

// Color is the hex RGB color a band is rendered with, on screen and in exports.
func (b Band) Color() string {
	switch b {
	case BandExpert:
		return "#1E8449"
	case BandIntermediate:
		return "#D68910"
	case BandBeginner:
		return "#C0392B"
	default:
		return "#7F8C8D"
	}
}

// Label is the printable band name.
func (b Band) Label() string {
	if b == BandUndefined {
		return "N/A"
	}
	return string(b)
}

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	Index         int       `json:"index"`
	QuestionID    uuid.UUID `json:"question_id"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	UserAnswer    *int      `json:"user_answer"`
	UserChoice    string    `json:"user_choice,omitempty"`
	CorrectAnswer int       `json:"correct_answer"`
	CorrectChoice string    `json:"correct_choice"`
	IsCorrect     bool      `json:"is_correct"`
}

// Answered reports whether the candidate picked any option.
func (q *QuestionResult) Answered() bool {
	return q.UserAnswer != nil
}

// Scorecard is the pure grading output for a question set and an answer mapping.
type Scorecard struct {
	Score       int              `json:"score"`
	Total       int              `json:"total"`
	PerQuestion []QuestionResult `json:"per_question"`
}

// Result is the frozen outcome of a finalized session. It is computed once,
// at the finalize instant, and never recomputed.
type Result struct {
	Scorecard
	SessionID        uuid.UUID      `json:"session_id"`
	ExamID           uuid.UUID      `json:"exam_id"`
	ExamTitle        string         `json:"exam_title"`
	CandidateID      int            `json:"candidate_id,omitempty"`
	Percentage       int            `json:"percentage"`
	Band             Band           `json:"band"`
	BandColor        string         `json:"band_color"`
	Passed           bool           `json:"passed"`
	Reason           FinalizeReason `json:"reason"`
	Violations       int            `json:"violations"`
	RemainingSeconds int            `json:"remaining_seconds"`
	FinalizedAt      time.Time      `json:"finalized_at"`
}

// Clone returns a deep copy so callers cannot reach the stored Result.
func (r Result) Clone() Result {
	out := r
	out.PerQuestion = make([]QuestionResult, len(r.PerQuestion))
	for i, q := range r.PerQuestion {
		q.Options = append([]string(nil), q.Options...)
		if q.UserAnswer != nil {
			v := *q.UserAnswer
			q.UserAnswer = &v
		}
		out.PerQuestion[i] = q
	}
	return out
}

// ResultSummary is a persisted result row as listed for administrators.
type ResultSummary struct {
	SessionID   uuid.UUID      `json:"session_id"`
	ExamID      uuid.UUID      `json:"exam_id"`
	CandidateID int            `json:"candidate_id"`
	Score       int            `json:"score"`
	Total       int            `json:"total"`
	Percentage  int            `json:"percentage"`
	Band        Band           `json:"band"`
	Reason      FinalizeReason `json:"reason"`
	Violations  int            `json:"violations"`
	FinalizedAt time.Time      `json:"finalized_at"`
}
