package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultWorker persists finalized results into exam_results. A session has at
// most one result, so inserts are idempotent on session_id.
type ResultWorker struct {
	pool     *pgxpool.Pool
	consumer *queueConsumer[model.Result]
	log      zerolog.Logger
}

func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	w := &ResultWorker{
		pool: pool,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
	w.consumer = &queueConsumer[model.Result]{
		rdb:   rdb,
		queue: config.WorkerKey.PersistResultsQueue,
		log:   w.log,
		flush: w.flushSafe,
	}
	return w
}

// Start blocks until ctx is cancelled.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")
	w.consumer.run(ctx)
}

func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.Result) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk result insert failed, using fallback")

		var failed []model.Result
		for _, r := range batch {
			if err := w.insertSingle(ctx, r); err != nil {
				if isPermanent(err) {
					w.log.Error().Err(err).Str("session_id", r.SessionID.String()).Msg("Result rejected by database, dropping")
					continue
				}
				w.log.Error().Err(err).Str("session_id", r.SessionID.String()).Msg("Result insert failed, requeueing")
				failed = append(failed, r)
			}
		}
		w.consumer.requeue(ctx, failed)
	}
}

const insertResultsSQL = `
	INSERT INTO exam_results (
		session_id, exam_id, candidate_id, score, total, percentage,
		band, reason, violations, remaining_seconds, breakdown, finalized_at
	)
	SELECT * FROM UNNEST(
		$1::uuid[], $2::uuid[], $3::int[], $4::int[], $5::int[], $6::int[],
		$7::text[], $8::text[], $9::int[], $10::int[], $11::jsonb[], $12::timestamptz[]
	)
	ON CONFLICT (session_id) DO NOTHING
`

func (w *ResultWorker) bulkInsert(ctx context.Context, batch []model.Result) error {
	n := len(batch)
	var (
		sessionIDs   = make([]uuid.UUID, n)
		examIDs      = make([]uuid.UUID, n)
		candidates   = make([]int, n)
		scores       = make([]int, n)
		totals       = make([]int, n)
		percentages  = make([]int, n)
		bands        = make([]string, n)
		reasons      = make([]string, n)
		violations   = make([]int, n)
		remaining    = make([]int, n)
		breakdowns   = make([]string, n)
		finalizedAts = make([]time.Time, n)
	)

	for i, r := range batch {
		raw, err := json.Marshal(r.PerQuestion)
		if err != nil {
			return err
		}
		sessionIDs[i] = r.SessionID
		examIDs[i] = r.ExamID
		candidates[i] = r.CandidateID
		scores[i] = r.Score
		totals[i] = r.Total
		percentages[i] = r.Percentage
		bands[i] = string(r.Band)
		reasons[i] = string(r.Reason)
		violations[i] = r.Violations
		remaining[i] = r.RemainingSeconds
		breakdowns[i] = string(raw)
		finalizedAts[i] = r.FinalizedAt
	}

	_, err := w.pool.Exec(ctx, insertResultsSQL,
		sessionIDs, examIDs, candidates, scores, totals, percentages,
		bands, reasons, violations, remaining, breakdowns, finalizedAts,
	)
	return err
}

func (w *ResultWorker) insertSingle(ctx context.Context, r model.Result) error {
	raw, err := json.Marshal(r.PerQuestion)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO exam_results (
			session_id, exam_id, candidate_id, score, total, percentage,
			band, reason, violations, remaining_seconds, breakdown, finalized_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12)
		ON CONFLICT (session_id) DO NOTHING`,
		r.SessionID, r.ExamID, r.CandidateID, r.Score, r.Total, r.Percentage,
		string(r.Band), string(r.Reason), r.Violations, r.RemainingSeconds, string(raw), r.FinalizedAt,
	)
	return err
}
