package matchclock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStorageError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"lock not available", &pq.Error{Code: "55P03"}, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock detected", &pq.Error{Code: "40P01"}, true},
		{"query canceled by lock timeout", &pq.Error{Code: "57014"}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"no rows", sql.ErrNoRows, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("failed to update match clock: %w", tt.err)
			got := classifyStorageError(wrapped)

			assert.Equal(t, tt.transient, errors.Is(got, ErrTransientStorage))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
