package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultSink receives what a session produces worth keeping: counted
// violations and the finalized Result.
type ResultSink interface {
	RecordViolation(ctx context.Context, v model.Violation) error
	RecordResult(ctx context.Context, r model.Result) error
}

// NopResultSink drops everything.
type NopResultSink struct{}

func (NopResultSink) RecordViolation(context.Context, model.Violation) error { return nil }
func (NopResultSink) RecordResult(context.Context, model.Result) error       { return nil }

// MonitorEvent is published on the exam's monitor channel for live dashboards.
type MonitorEvent struct {
	Type        string    `json:"type"`
	SessionID   uuid.UUID `json:"session_id"`
	CandidateID int       `json:"candidate_id"`
	At          time.Time `json:"at"`

	Kind    string `json:"kind,omitempty"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`

	Score      *int                 `json:"score,omitempty"`
	Total      *int                 `json:"total,omitempty"`
	Percentage *int                 `json:"percentage,omitempty"`
	Reason     model.FinalizeReason `json:"reason,omitempty"`
}

// RedisResultSink queues payloads for the persistence workers and publishes a
// compact event for the admin monitor, in one pipeline per call.
type RedisResultSink struct {
	rdb *redis.Client
}

func NewRedisResultSink(rdb *redis.Client) *RedisResultSink {
	return &RedisResultSink{rdb: rdb}
}

func (s *RedisResultSink) RecordViolation(ctx context.Context, v model.Violation) error {
	return s.push(ctx, config.WorkerKey.PersistViolationsQueue, v, v.ExamID, MonitorEvent{
		Type:        "violation",
		SessionID:   v.SessionID,
		CandidateID: v.CandidateID,
		At:          v.RecordedAt,
		Kind:        v.Kind,
		Count:       v.Count,
		Message:     v.Message,
	})
}

func (s *RedisResultSink) RecordResult(ctx context.Context, r model.Result) error {
	return s.push(ctx, config.WorkerKey.PersistResultsQueue, r, r.ExamID, MonitorEvent{
		Type:        "finalized",
		SessionID:   r.SessionID,
		CandidateID: r.CandidateID,
		At:          r.FinalizedAt,
		Score:       &r.Score,
		Total:       &r.Total,
		Percentage:  &r.Percentage,
		Reason:      r.Reason,
	})
}

func (s *RedisResultSink) push(ctx context.Context, queue string, payload any, examID uuid.UUID, ev MonitorEvent) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	evRaw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal monitor event: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, queue, raw)
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), evRaw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push to %s: %w", queue, err)
	}
	return nil
}
