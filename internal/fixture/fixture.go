// Package fixture loads exam definitions from YAML files.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// namespace for IDs derived from titles, so reseeding the same file keeps the same IDs.
var namespace = uuid.MustParse("6f1c8f0e-4b8a-4e0a-9d7c-3c1f4b2a9e11")

var ErrInvalidExam = errors.New("invalid exam fixture")

// examFile is the YAML shape of one exam.
type examFile struct {
	ID              string         `yaml:"id"`
	Title           string         `yaml:"title"`
	DurationMinutes int            `yaml:"duration_minutes"`
	Status          string         `yaml:"status"`
	Questions       []questionFile `yaml:"questions"`
}

type questionFile struct {
	ID      string   `yaml:"id"`
	Text    string   `yaml:"text"`
	Options []string `yaml:"options"`
	// Answer is either the zero-based option index or the option text.
	Answer string `yaml:"answer"`
}

// Parse decodes and validates one exam definition.
func Parse(data []byte) (*model.Exam, error) {
	var f examFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return f.toExam()
}

// LoadFile reads one exam from path.
func LoadFile(path string) (*model.Exam, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	exam, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return exam, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by name. Invalid
// files are logged and skipped; the error is only for an unreadable directory.
func LoadDir(dir string, log zerolog.Logger) ([]*model.Exam, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixtures dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	exams := make([]*model.Exam, 0, len(names))
	for _, name := range names {
		exam, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Skipping exam fixture")
			continue
		}
		exams = append(exams, exam)
	}

	log.Info().Int("count", len(exams)).Int("files", len(names)).Str("dir", dir).Msg("Exam fixtures loaded")
	return exams, nil
}

func (f *examFile) toExam() (*model.Exam, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidExam)
	}
	if f.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidExam)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", ErrInvalidExam)
	}

	id, err := deriveID(f.ID, title)
	if err != nil {
		return nil, err
	}

	status := model.ExamStatus(strings.ToUpper(f.Status))
	switch status {
	case "":
		status = model.ExamStatusPublished
	case model.ExamStatusDraft, model.ExamStatusPublished, model.ExamStatusArchived:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidExam, f.Status)
	}

	exam := &model.Exam{
		ID:              id,
		Title:           title,
		DurationMinutes: f.DurationMinutes,
		Status:          status,
		Questions:       make([]model.Question, len(f.Questions)),
	}
	for i, q := range f.Questions {
		question, err := q.toQuestion(id, i)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidExam, i+1, err)
		}
		exam.Questions[i] = question
	}
	return exam, nil
}

func (q *questionFile) toQuestion(examID uuid.UUID, i int) (model.Question, error) {
	if strings.TrimSpace(q.Text) == "" {
		return model.Question{}, errors.New("text is required")
	}
	if len(q.Options) < 2 {
		return model.Question{}, errors.New("at least two options are required")
	}

	answer, err := q.answerIndex()
	if err != nil {
		return model.Question{}, err
	}

	id, err := deriveID(q.ID, examID.String()+"/"+strconv.Itoa(i))
	if err != nil {
		return model.Question{}, err
	}

	return model.Question{
		ID:                 id,
		Text:               q.Text,
		Options:            q.Options,
		CorrectOptionIndex: answer,
		OrderNum:           i + 1,
	}, nil
}

func (q *questionFile) answerIndex() (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(q.Answer)); err == nil {
		if n < 0 || n >= len(q.Options) {
			return 0, fmt.Errorf("answer %d out of range", n)
		}
		return n, nil
	}
	for i, opt := range q.Options {
		if opt == q.Answer {
			return i, nil
		}
	}
	return 0, fmt.Errorf("answer %q is not one of the options", q.Answer)
}

func deriveID(raw, seed string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.NewSHA1(namespace, []byte(seed)), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad id %q", ErrInvalidExam, raw)
	}
	return id, nil
}
