package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultRepository reads persisted results and violation logs.
// Writes go through the workers.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// ListByExam returns one page of results for an exam, newest first, and the total count.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ResultSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_results WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT session_id, exam_id, candidate_id, score, total, percentage,
		        band, reason, violations, finalized_at
		 FROM exam_results
		 WHERE exam_id = $1
		 ORDER BY finalized_at DESC
		 LIMIT $2 OFFSET $3`, examID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := make([]model.ResultSummary, 0, limit)
	for rows.Next() {
		var s model.ResultSummary
		if err := rows.Scan(&s.SessionID, &s.ExamID, &s.CandidateID, &s.Score, &s.Total, &s.Percentage,
			&s.Band, &s.Reason, &s.Violations, &s.FinalizedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, s)
	}
	return results, total, rows.Err()
}

// ViolationCounts returns the number of logged violations per candidate for an exam.
func (r *ResultRepository) ViolationCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT candidate_id, COUNT(*)
		 FROM exam_violations
		 WHERE exam_id = $1
		 GROUP BY candidate_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var cid int
		var count int64
		if err := rows.Scan(&cid, &count); err != nil {
			return nil, err
		}
		counts[cid] = count
	}
	return counts, rows.Err()
}

// CountByExam returns how many results have been persisted for an exam.
func (r *ResultRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_results WHERE exam_id = $1`, examID).Scan(&n)
	return n, err
}
