package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/exam"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Domain Errors
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotAvailable = errors.New("exam is not published")
	ErrNoQuestions      = exam.ErrNoQuestions
)

// ExamStore is the exam table.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListPublished(ctx context.Context) ([]model.Exam, error)
}

// QuestionStore is the question table.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// ExamService loads exam definitions, Redis first and PostgreSQL behind it.
type ExamService struct {
	exams     ExamStore
	questions QuestionStore
	cache     ExamCache
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamStore, questions QuestionStore, cache ExamCache, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:     exams,
		questions: questions,
		cache:     cache,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// LoadExam returns a published exam with its questions and answer key. It is
// the entry guard for sessions: unpublished and empty exams are rejected here.
func (s *ExamService) LoadExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := s.cache.GetExam(ctx, id)
	switch {
	case err == nil:
		return e, checkAvailable(e)
	case !errors.Is(err, ErrCacheMiss):
		// Redis trouble is not fatal, PostgreSQL is the source of truth.
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache read failed, falling back to database")
	}

	e, err = s.loadFromDB(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAvailable(e); err != nil {
		return nil, err
	}

	// Self-heal so the next request is served from Redis.
	if err := s.cache.SetExam(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to cache exam")
	}
	return e, nil
}

// GetPaper returns the candidate-facing copy of a published exam.
func (s *ExamService) GetPaper(ctx context.Context, id uuid.UUID) (*model.ExamPaper, error) {
	paper, err := s.cache.GetPaper(ctx, id)
	if err == nil {
		return paper, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Paper cache read failed")
	}

	e, err := s.LoadExam(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Paper(), nil
}

// WarmExamCache loads an exam's questions from PostgreSQL and caches the full
// definition and the candidate paper in Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, e *model.Exam) error {
	questions, err := s.questions.ListByExam(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	full := *e
	full.Questions = questions
	if err := s.cache.SetExam(ctx, &full); err != nil {
		return fmt.Errorf("cache exam: %w", err)
	}

	s.log.Debug().
		Str("exam_id", e.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming published exams...")

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

func (s *ExamService) loadFromDB(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	questions, err := s.questions.ListByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	e.Questions = questions
	return e, nil
}

func checkAvailable(e *model.Exam) error {
	if e.Status != model.ExamStatusPublished {
		return ErrExamNotAvailable
	}
	if len(e.Questions) == 0 {
		return ErrNoQuestions
	}
	return nil
}
