package scoring

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func questions(keys ...int) []model.Question {
	out := make([]model.Question, len(keys))
	for i, k := range keys {
		out[i] = model.Question{
			ID:                 uuid.New(),
			Text:               "Q",
			Options:            []string{"A", "B", "C", "D"},
			CorrectOptionIndex: k,
		}
	}
	return out
}

func TestGradeMixedAnswers(t *testing.T) {
	qs := questions(0, 1, 2, 3, 0)
	answers := map[int]int{0: 0, 1: 1, 2: 2, 3: 0}

	card := Grade(qs, answers)

	assert.Equal(t, 3, card.Score)
	assert.Equal(t, 5, card.Total)
	require.Len(t, card.PerQuestion, 5)

	wrong := card.PerQuestion[3]
	assert.False(t, wrong.IsCorrect)
	require.NotNil(t, wrong.UserAnswer)
	assert.Equal(t, 0, *wrong.UserAnswer)
	assert.Equal(t, "A", wrong.UserChoice)
	assert.Equal(t, "D", wrong.CorrectChoice)

	skipped := card.PerQuestion[4]
	assert.False(t, skipped.IsCorrect)
	assert.Nil(t, skipped.UserAnswer)
	assert.False(t, skipped.Answered())
	assert.Empty(t, skipped.UserChoice)
}

func TestGradeScoreMatchesKeyedCount(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		n := r.IntN(12)
		keys := make([]int, n)
		for i := range keys {
			keys[i] = r.IntN(4)
		}
		qs := questions(keys...)

		answers := map[int]int{}
		want := 0
		for i := range qs {
			if r.IntN(3) == 0 {
				continue
			}
			answers[i] = r.IntN(4)
			if answers[i] == keys[i] {
				want++
			}
		}
		// stray indices never count
		answers[n+5] = 0

		card := Grade(qs, answers)
		assert.Equal(t, want, card.Score)
		assert.Equal(t, n, card.Total)
	}
}

func TestGradeDoesNotAliasInput(t *testing.T) {
	qs := questions(1)
	card := Grade(qs, map[int]int{0: 1})

	card.PerQuestion[0].Options[0] = "changed"
	assert.Equal(t, "A", qs[0].Options[0])
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(0, 0))
	assert.Equal(t, 60, Percentage(3, 5))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 100, Percentage(7, 7))
}

func TestPolicyBands(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		pct   int
		total int
		band  model.Band
		pass  bool
	}{
		{100, 10, model.BandExpert, true},
		{85, 20, model.BandExpert, true},
		{84, 25, model.BandIntermediate, true},
		{60, 5, model.BandIntermediate, true},
		{59, 100, model.BandBeginner, false},
		{0, 4, model.BandBeginner, false},
		{0, 0, model.BandUndefined, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.band, p.Band(c.pct, c.total), "pct=%d", c.pct)
		assert.Equal(t, c.pass, p.Passed(c.pct, c.total), "pct=%d", c.pct)
	}
}

func TestApplyEmptyExam(t *testing.T) {
	var r model.Result
	DefaultPolicy().Apply(&r)

	assert.Equal(t, 0, r.Percentage)
	assert.Equal(t, model.BandUndefined, r.Band)
	assert.Equal(t, "N/A", r.Band.Label())
	assert.Equal(t, model.BandUndefined.Color(), r.BandColor)
	assert.False(t, r.Passed)
}

func TestBandColorsAreDistinct(t *testing.T) {
	seen := map[string]model.Band{}
	for _, b := range []model.Band{model.BandExpert, model.BandIntermediate, model.BandBeginner, model.BandUndefined} {
		_, dup := seen[b.Color()]
		assert.False(t, dup, b)
		seen[b.Color()] = b
	}
}
