package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/scoring"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// callLog records the order in which the feed and the result store are hit.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) first() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.calls) == 0 {
		return ""
	}
	return l.calls[0]
}

// staticFeed hands out a channel preloaded with payloads, closed after them.
type staticFeed struct {
	log      *callLog
	channel  string
	payloads []string
	err      error
}

func (f *staticFeed) Subscribe(_ context.Context, channel string) (<-chan *redis.Message, func() error, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.log.add("subscribe")
	f.channel = channel
	ch := make(chan *redis.Message, len(f.payloads))
	for _, p := range f.payloads {
		ch <- &redis.Message{Channel: channel, Payload: p}
	}
	close(ch)
	return ch, func() error { return nil }, nil
}

type warmCache struct {
	paper *model.ExamPaper
}

func (c warmCache) GetExam(context.Context, uuid.UUID) (*model.Exam, error) {
	return nil, service.ErrCacheMiss
}
func (c warmCache) GetPaper(context.Context, uuid.UUID) (*model.ExamPaper, error) {
	return c.paper, nil
}
func (warmCache) SetExam(context.Context, *model.Exam) error { return nil }

type countingResults struct {
	log *callLog
}

func (r countingResults) ListByExam(context.Context, uuid.UUID, int, int) ([]model.ResultSummary, int, error) {
	return nil, 0, nil
}

func (r countingResults) CountByExam(context.Context, uuid.UUID) (int, error) {
	r.log.add("snapshot")
	return 0, nil
}

func (r countingResults) ViolationCounts(context.Context, uuid.UUID) (map[int]int64, error) {
	return map[int]int64{}, nil
}

func serveMonitor(t *testing.T, feed *staticFeed, calls *callLog) (*httptest.ResponseRecorder, uuid.UUID) {
	t.Helper()
	log := zerolog.Nop()
	examID := uuid.New()

	exams := service.NewExamService(nil, nil, warmCache{paper: &model.ExamPaper{
		ExamID: examID, Title: "Networking Basics", DurationMinutes: 30,
	}}, log)
	sessions := service.NewSessionService(exams, nil, clock.NewManual(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
		service.SessionConfig{Threshold: 3, TickInterval: time.Second, Policy: scoring.DefaultPolicy(), Retention: time.Hour}, log)
	t.Cleanup(sessions.Shutdown)
	monitor := service.NewMonitorService(sessions, countingResults{log: calls})

	h := NewMonitorHandlerWithFeed(feed, exams, monitor, log)
	r := gin.New()
	r.GET("/admin/exams/:id/monitor", h.MonitorExamSSE)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/exams/"+examID.String()+"/monitor", nil))
	return w, examID
}

func TestMonitorSubscribesBeforeSnapshot(t *testing.T) {
	calls := &callLog{}
	violation := `{"type":"violation","candidate_id":7,"kind":"copy"}`
	feed := &staticFeed{log: calls, payloads: []string{violation}}

	w, examID := serveMonitor(t, feed, calls)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "subscribe", calls.first())
	assert.Equal(t, config.CacheKey.ExamMonitorChannel(examID.String()), feed.channel)

	body := w.Body.String()
	snapshotAt := strings.Index(body, `"type":"snapshot"`)
	violationAt := strings.Index(body, "data: "+violation)
	require.GreaterOrEqual(t, snapshotAt, 0, body)
	require.GreaterOrEqual(t, violationAt, 0, body)
	assert.Less(t, snapshotAt, violationAt)
}

func TestMonitorSubscribeFailure(t *testing.T) {
	calls := &callLog{}
	feed := &staticFeed{log: calls, err: errors.New("connection refused")}

	w, _ := serveMonitor(t, feed, calls)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, calls.first(), "no snapshot without a subscription")
}
