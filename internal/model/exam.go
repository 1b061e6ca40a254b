package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam definition.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam is an immutable exam definition. Sessions never mutate it.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          ExamStatus `json:"status"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Duration is the configured time limit.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// Paper builds the candidate-facing copy of the exam, without the answer key.
func (e *Exam) Paper() *ExamPaper {
	questions := make([]QuestionForCandidate, len(e.Questions))
	for i, q := range e.Questions {
		questions[i] = QuestionForCandidate{
			ID:       q.ID,
			Index:    i,
			Text:     q.Text,
			Options:  append([]string(nil), q.Options...),
			OrderNum: q.OrderNum,
		}
	}
	return &ExamPaper{
		ExamID:          e.ID,
		Title:           e.Title,
		DurationMinutes: e.DurationMinutes,
		Questions:       questions,
	}
}

// ExamPaper is the payload sent to candidates (no correct answers).
type ExamPaper struct {
	ExamID          uuid.UUID              `json:"exam_id"`
	Title           string                 `json:"title"`
	DurationMinutes int                    `json:"duration_minutes"`
	Questions       []QuestionForCandidate `json:"questions"`
}
