package model

import (
	"time"

	"github.com/google/uuid"
)

// Violation is one counted proctoring signal, as logged for review.
type Violation struct {
	SessionID   uuid.UUID `json:"session_id"`
	ExamID      uuid.UUID `json:"exam_id"`
	CandidateID int       `json:"candidate_id"`
	Kind        string    `json:"kind"`
	Count       int       `json:"count"`
	Message     string    `json:"message"`
	RecordedAt  time.Time `json:"recorded_at"`
}
