package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"exam deleted after finalize", &pgconn.PgError{Code: "23503", ConstraintName: "exam_results_exam_id_fkey"}, true},
		{"check constraint", &pgconn.PgError{Code: "23514"}, true},
		{"wrapped foreign key", fmt.Errorf("insert result: %w", &pgconn.PgError{Code: "23503"}), true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, false},
		{"connection lost", errors.New("conn closed"), false},
		{"timeout", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPermanent(tt.err))
		})
	}
}
