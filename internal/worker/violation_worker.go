package worker

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ViolationWorker persists counted proctoring violations into exam_violations.
type ViolationWorker struct {
	pool     *pgxpool.Pool
	consumer *queueConsumer[model.Violation]
	log      zerolog.Logger
}

func NewViolationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	w := &ViolationWorker{
		pool: pool,
		log:  log.With().Str("component", "violation_worker").Logger(),
	}
	w.consumer = &queueConsumer[model.Violation]{
		rdb:   rdb,
		queue: config.WorkerKey.PersistViolationsQueue,
		log:   w.log,
		flush: w.flushSafe,
	}
	return w
}

// Start blocks until ctx is cancelled.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")
	w.consumer.run(ctx)
}

// flushSafe attempts bulk insert, then row-by-row insert, then requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []model.Violation) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

var violationColumns = []string{"session_id", "exam_id", "candidate_id", "kind", "count", "message", "recorded_at"}

func (w *ViolationWorker) bulkInsert(ctx context.Context, batch []model.Violation) error {
	rows := make([][]any, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []any{v.SessionID, v.ExamID, v.CandidateID, v.Kind, v.Count, v.Message, v.RecordedAt})
	}

	_, err := w.pool.CopyFrom(ctx, pgx.Identifier{"exam_violations"}, violationColumns, pgx.CopyFromRows(rows))
	return err
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []model.Violation) {
	var failed []model.Violation
	for _, v := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO exam_violations (session_id, exam_id, candidate_id, kind, count, message, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			v.SessionID, v.ExamID, v.CandidateID, v.Kind, v.Count, v.Message, v.RecordedAt,
		)
		if err != nil {
			if isPermanent(err) {
				w.log.Error().Err(err).Str("session_id", v.SessionID.String()).Msg("Violation rejected by database, dropping")
				continue
			}
			w.log.Error().Err(err).Str("session_id", v.SessionID.String()).Msg("Insert failed, requeueing")
			failed = append(failed, v)
		}
	}
	w.consumer.requeue(ctx, failed)
}
