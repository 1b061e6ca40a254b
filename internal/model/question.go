package model

import (
	"github.com/google/uuid"
)

// Question is a single multiple-choice question. Options keep their order;
// the correct answer is the index of one option.
type Question struct {
	ID                 uuid.UUID `json:"id"`
	Text               string    `json:"text"`
	Options            []string  `json:"options"`
	CorrectOptionIndex int       `json:"correct_option_index"`
	OrderNum           int       `json:"order_num"`
}

// Option returns the option text at i, or "" when i is out of range.
func (q *Question) Option(i int) string {
	if i < 0 || i >= len(q.Options) {
		return ""
	}
	return q.Options[i]
}

// HasOption reports whether i addresses one of the options.
func (q *Question) HasOption(i int) bool {
	return i >= 0 && i < len(q.Options)
}

// QuestionForCandidate is a question without the correct answer, sent to candidates.
type QuestionForCandidate struct {
	ID       uuid.UUID `json:"id"`
	Index    int       `json:"index"`
	Text     string    `json:"text"`
	Options  []string  `json:"options"`
	OrderNum int       `json:"order_num"`
}
