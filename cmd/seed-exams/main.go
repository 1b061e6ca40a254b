package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/fixture"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	dir := flag.String("dir", cfg.FixturesDir, "directory of exam YAML files")
	warm := flag.Bool("warm", true, "cache published exams in Redis after seeding")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	exams, err := fixture.LoadDir(*dir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load exam fixtures")
	}
	if len(exams) == 0 {
		fmt.Printf("No exam fixtures found in %s\n", *dir)
		return
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	fmt.Printf("=== Seeding %d exams ===\n", len(exams))

	seeded := make([]*model.Exam, 0, len(exams))
	for _, e := range exams {
		if err := examRepo.Upsert(ctx, e); err != nil {
			log.Error().Err(err).Str("exam_id", e.ID.String()).Msg("Failed to upsert exam")
			continue
		}
		if err := questionRepo.ReplaceForExam(ctx, e.ID, e.Questions); err != nil {
			log.Error().Err(err).Str("exam_id", e.ID.String()).Msg("Failed to replace questions")
			continue
		}
		seeded = append(seeded, e)
		fmt.Printf("  %s  %-40s %2d questions  %s\n", e.ID, e.Title, len(e.Questions), e.Status)
	}

	if !*warm {
		fmt.Printf("\nDone. Seeded %d/%d exams.\n", len(seeded), len(exams))
		return
	}

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	examService := service.NewExamService(examRepo, questionRepo, service.NewRedisExamCache(rdb), log)
	warmed := 0
	for _, e := range seeded {
		if e.Status != model.ExamStatusPublished {
			continue
		}
		if err := examService.WarmExamCache(ctx, e); err != nil {
			log.Warn().Err(err).Str("exam_id", e.ID.String()).Msg("Failed to warm exam cache")
			continue
		}
		warmed++
	}

	fmt.Printf("\nDone. Seeded %d/%d exams, cached %d.\n", len(seeded), len(exams), warmed)
}
