package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

const goBasics = `
title: Go Basics
duration_minutes: 10
questions:
  - text: Which keyword starts a goroutine?
    options: [go, async, spawn]
    answer: 0
  - text: What is the zero value of a pointer?
    options: ["0", "nil", "undefined"]
    answer: nil
`

func TestParse(t *testing.T) {
	exam, err := Parse([]byte(goBasics))
	require.NoError(t, err)

	assert.Equal(t, "Go Basics", exam.Title)
	assert.Equal(t, 10, exam.DurationMinutes)
	assert.Equal(t, model.ExamStatusPublished, exam.Status)
	require.Len(t, exam.Questions, 2)
	assert.Equal(t, 0, exam.Questions[0].CorrectOptionIndex)
	assert.Equal(t, 1, exam.Questions[1].CorrectOptionIndex)
	assert.Equal(t, 2, exam.Questions[1].OrderNum)
}

func TestParseDerivesStableIDs(t *testing.T) {
	a, err := Parse([]byte(goBasics))
	require.NoError(t, err)
	b, err := Parse([]byte(goBasics))
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Questions[1].ID, b.Questions[1].ID)
	assert.NotEqual(t, a.Questions[0].ID, a.Questions[1].ID)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no title":     "duration_minutes: 5\nquestions: [{text: q, options: [a, b], answer: 0}]",
		"no duration":  "title: x\nquestions: [{text: q, options: [a, b], answer: 0}]",
		"no questions": "title: x\nduration_minutes: 5",
		"one option":   "title: x\nduration_minutes: 5\nquestions: [{text: q, options: [a], answer: 0}]",
		"bad answer":   "title: x\nduration_minutes: 5\nquestions: [{text: q, options: [a, b], answer: 7}]",
		"unknown text": "title: x\nduration_minutes: 5\nquestions: [{text: q, options: [a, b], answer: c}]",
		"bad status":   "title: x\nstatus: live\nduration_minutes: 5\nquestions: [{text: q, options: [a, b], answer: 0}]",
		"bad id":       "id: nope\ntitle: x\nduration_minutes: 5\nquestions: [{text: q, options: [a, b], answer: 0}]",
	}
	for name, src := range cases {
		_, err := Parse([]byte(src))
		assert.ErrorIs(t, err, ErrInvalidExam, name)
	}

	_, err := Parse([]byte("title: [unterminated"))
	assert.Error(t, err)
}

func TestLoadDirSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_go.yaml"), []byte(goBasics), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_bad.yml"), []byte("title: broken"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	exams, err := LoadDir(dir, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "Go Basics", exams[0].Title)

	_, err = LoadDir(filepath.Join(dir, "missing"), zerolog.Nop())
	assert.Error(t, err)
}
