package model

import (
	"github.com/google/uuid"
)

// Phase enumerates exam session states. The only path is
// INSTRUCTIONS -> IN_PROGRESS -> FINALIZED.
type Phase string

const (
	PhaseInstructions Phase = "INSTRUCTIONS"
	PhaseInProgress   Phase = "IN_PROGRESS"
	PhaseFinalized    Phase = "FINALIZED"
)

// FinalizeReason records which trigger ended a session. It never affects scoring.
type FinalizeReason string

const (
	FinalizeManual     FinalizeReason = "manual"
	FinalizeTimeout    FinalizeReason = "timeout"
	FinalizeViolations FinalizeReason = "violations"
)

// SessionState is a point-in-time copy of a session, safe to serialize.
type SessionState struct {
	SessionID           uuid.UUID   `json:"session_id"`
	ExamID              uuid.UUID   `json:"exam_id"`
	Phase               Phase       `json:"phase"`
	CurrentIndex        int         `json:"current_index"`
	TotalQuestions      int         `json:"total_questions"`
	Answers             map[int]int `json:"answers"`
	Marked              []int       `json:"marked"`
	RemainingSeconds    int         `json:"remaining_seconds"`
	RemainingDisplay    string      `json:"remaining_display"`
	Violations          int         `json:"violations"`
	ViolationThreshold  int         `json:"violation_threshold"`
	ConfirmationPending bool        `json:"confirmation_pending"`
	FinalizeReason      string      `json:"finalize_reason,omitempty"`
}

// Answered is the number of questions with a selected option.
func (s *SessionState) Answered() int {
	return len(s.Answers)
}

// SelectAnswerRequest is the payload for choosing an option on the current question.
type SelectAnswerRequest struct {
	Option *int `json:"option" binding:"required,min=0"`
}

// NavigateRequest moves the current-question pointer, either to an absolute
// index or one step in a direction.
type NavigateRequest struct {
	Index     *int   `json:"index" binding:"required_without=Direction"`
	Direction string `json:"direction" binding:"omitempty,oneof=next prev"`
}

// SignalRequest reports a proctoring signal observed by the client.
type SignalRequest struct {
	Kind string `json:"kind" binding:"required,signal_kind"`
}
