package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore/checkout-service/internal/domain"
)

// Postgres error codes that mean the transaction lost a race, not that the
// request was wrong. Callers retry the whole checkout on these.
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
)

// PgxTxManager implements TxManager on a pgx connection pool. Every
// transaction runs with a bounded lock_timeout so a contended checkout
// aborts instead of queueing forever.
type PgxTxManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPgxTxManager(pool *pgxpool.Pool, lockTimeout time.Duration) *PgxTxManager {
	return &PgxTxManager{pool: pool, lockTimeout: lockTimeout}
}

func (m *PgxTxManager) InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// SET does not take bind parameters; the value is a formatted duration.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if err := fn(ctx, NewPostgresStore(tx)); err != nil {
		return mapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapConflict(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// mapConflict translates lock-wait timeouts, deadlocks and serialization
// failures into the retryable domain.ErrTransactionConflict, keeping the
// original error in the chain.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable:
			return fmt.Errorf("%w: %v", domain.ErrTransactionConflict, err)
		}
	}
	return err
}
