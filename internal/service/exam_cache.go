package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrCacheMiss means the key is absent. Any other cache error is an outage.
var ErrCacheMiss = errors.New("cache miss")

// ExamCache stores exam definitions (with answer key) and candidate papers.
type ExamCache interface {
	GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	GetPaper(ctx context.Context, id uuid.UUID) (*model.ExamPaper, error)
	SetExam(ctx context.Context, e *model.Exam) error
}

// RedisExamCache is the "fast lane" for exam definitions.
type RedisExamCache struct {
	rdb *redis.Client
}

func NewRedisExamCache(rdb *redis.Client) *RedisExamCache {
	return &RedisExamCache{rdb: rdb}
}

func (c *RedisExamCache) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	var e model.Exam
	if err := c.get(ctx, config.CacheKey.ExamDefinitionKey(id.String()), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *RedisExamCache) GetPaper(ctx context.Context, id uuid.UUID) (*model.ExamPaper, error) {
	var p model.ExamPaper
	if err := c.get(ctx, config.CacheKey.ExamPaperKey(id.String()), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetExam writes the definition and the paper in one pipeline.
func (c *RedisExamCache) SetExam(ctx context.Context, e *model.Exam) error {
	def, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	paper, err := json.Marshal(e.Paper())
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamDefinitionKey(e.ID.String()), def, 0)
	pipe.Set(ctx, config.CacheKey.ExamPaperKey(e.ID.String()), paper, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}
	return nil
}

func (c *RedisExamCache) get(ctx context.Context, key string, v any) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}
