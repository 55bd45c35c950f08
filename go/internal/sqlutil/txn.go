package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run binds a query set to a new transaction and hands it to fn. The
// transaction commits when fn returns nil and rolls back otherwise; a failed
// rollback is joined onto fn's error.
func Run[Q any](
	ctx context.Context,
	db *sql.DB,
	opts *sql.TxOptions,
	bind func(*sql.Tx) *Q,
	fn func(q *Q) error,
) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
