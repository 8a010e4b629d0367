package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner executes a function within a single database transaction.
// Services depend on this interface so tests can substitute a pass-through.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(q Querier) error) error
}

// PoolRunner runs transactions against a pgx pool using the RepeatableRead
// isolation level.
type PoolRunner struct {
	Pool *pgxpool.Pool
}

// RunTx executes fn within a transaction, committing on success and rolling
// back on any error.
func (r PoolRunner) RunTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
