package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorFeed subscribes to the events the result sink publishes for an exam.
// Subscribe returns once the subscription is active.
type MonitorFeed interface {
	Subscribe(ctx context.Context, channel string) (<-chan *redis.Message, func() error, error)
}

// RedisMonitorFeed is the MonitorFeed backed by Redis Pub/Sub.
type RedisMonitorFeed struct {
	rdb *redis.Client
}

func (f RedisMonitorFeed) Subscribe(ctx context.Context, channel string) (<-chan *redis.Message, func() error, error) {
	pubsub := f.rdb.Subscribe(ctx, channel)
	// Wait for the subscribe confirmation so nothing published after this
	// call is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}
	return pubsub.Channel(), pubsub.Close, nil
}

// MonitorHandler streams the live proctoring view of an exam to administrators.
type MonitorHandler struct {
	feed    MonitorFeed
	exams   *service.ExamService
	monitor *service.MonitorService
	log     zerolog.Logger
}

func NewMonitorHandler(rdb *redis.Client, exams *service.ExamService, monitor *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return NewMonitorHandlerWithFeed(RedisMonitorFeed{rdb: rdb}, exams, monitor, log)
}

// NewMonitorHandlerWithFeed is NewMonitorHandler with an explicit event source.
func NewMonitorHandlerWithFeed(feed MonitorFeed, exams *service.ExamService, monitor *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		feed:    feed,
		exams:   exams,
		monitor: monitor,
		log:     log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Sends a snapshot, then forwards violation and finalized events published by
// the result sink, with a periodic refresh while candidates are active.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()
	paper, err := h.exams.GetPaper(reqCtx, examID)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	// Subscribed before the snapshot; events raised while it is built follow it.
	ch, unsubscribe, err := h.feed.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
	if err != nil {
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Monitor subscribe failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	active := h.sendProgress(c, examID, "snapshot", gin.H{
		"id":              examID,
		"title":           paper.Title,
		"duration":        paper.DurationMinutes,
		"total_questions": len(paper.Questions),
	})

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	log := h.log.With().Str("exam_id", examID.String()).Logger()
	log.Info().Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON; forward them as-is.
			_, _ = c.Writer.WriteString("data: " + msg.Payload + "\n\n")
			c.Writer.Flush()
			active = true

		case <-refresh.C:
			if !active {
				continue
			}
			active = h.sendProgress(c, examID, "refresh", nil)

		case <-keepAlive.C:
			c.SSEvent("message", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

// sendProgress writes one progress event and reports whether any candidate is
// still in progress.
func (h *MonitorHandler) sendProgress(c *gin.Context, examID uuid.UUID, kind string, exam gin.H) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	snap, err := h.monitor.GetExamProgress(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to build exam progress")
		return true
	}

	payload := gin.H{"type": kind, "stats": snap.Stats, "candidates": snap.Candidates}
	if exam != nil {
		payload["exam"] = exam
	}
	c.SSEvent("message", payload)
	c.Writer.Flush()
	return snap.Stats.InProgress > 0
}
