// Package scoring grades a question set against an answer mapping and maps the
// resulting percentage onto proficiency bands.
package scoring

import (
	"math"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Grade compares answers (question index -> selected option index) with the
// answer key. Unanswered questions are incorrect. Answers for indices outside
// the question set are ignored.
func Grade(questions []model.Question, answers map[int]int) model.Scorecard {
	card := model.Scorecard{
		Total:       len(questions),
		PerQuestion: make([]model.QuestionResult, len(questions)),
	}

	for i := range questions {
		q := &questions[i]
		qr := model.QuestionResult{
			Index:         i,
			QuestionID:    q.ID,
			Question:      q.Text,
			Options:       append([]string(nil), q.Options...),
			CorrectAnswer: q.CorrectOptionIndex,
			CorrectChoice: q.Option(q.CorrectOptionIndex),
		}

		if selected, ok := answers[i]; ok {
			v := selected
			qr.UserAnswer = &v
			qr.UserChoice = q.Option(selected)
			qr.IsCorrect = selected == q.CorrectOptionIndex
		}

		if qr.IsCorrect {
			card.Score++
		}
		card.PerQuestion[i] = qr
	}

	return card
}

// Percentage is round(score/total*100), or 0 when there is nothing to grade.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// Policy holds the business thresholds, all in whole percent.
type Policy struct {
	ExpertMin       int
	IntermediateMin int
	PassMark        int
}

// DefaultPolicy is Expert at 85, Intermediate at 60, pass at 60.
func DefaultPolicy() Policy {
	return Policy{ExpertMin: 85, IntermediateMin: 60, PassMark: 60}
}

// Band maps a percentage to a proficiency band. An empty exam has no band.
func (p Policy) Band(pct, total int) model.Band {
	switch {
	case total <= 0:
		return model.BandUndefined
	case pct >= p.ExpertMin:
		return model.BandExpert
	case pct >= p.IntermediateMin:
		return model.BandIntermediate
	default:
		return model.BandBeginner
	}
}

// Passed reports whether pct meets the pass mark.
func (p Policy) Passed(pct, total int) bool {
	return total > 0 && pct >= p.PassMark
}

// Apply fills the derived fields of r (percentage, band, color, pass) from its scorecard.
func (p Policy) Apply(r *model.Result) {
	r.Percentage = Percentage(r.Score, r.Total)
	r.Band = p.Band(r.Percentage, r.Total)
	r.BandColor = r.Band.Color()
	r.Passed = p.Passed(r.Percentage, r.Total)
}
