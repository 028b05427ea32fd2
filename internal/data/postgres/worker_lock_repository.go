package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rewardhub/settlement-engine/internal/domain/worklock"
	"github.com/rewardhub/settlement-engine/internal/platform/persistence"
)

// WorkerLockRepository implements the worklock.Repository interface for
// PostgreSQL. It backs the single-runner guarantee of the reconciliation
// poller: at most one holder per lock name, with stale-holder takeover.
type WorkerLockRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWorkerLockRepository creates a new PostgreSQL worker lock repository
func NewWorkerLockRepository(logger *slog.Logger, db *persistence.PostgresDB) worklock.Repository {
	return &WorkerLockRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// TryAcquire attempts to take or refresh the named lock for holder. A lock
// held by another holder is only taken over once its heartbeat is older than
// staleAfter. Returns true when the caller now holds the lock.
func (r *WorkerLockRepository) TryAcquire(ctx context.Context, name, holder string, staleAfter time.Duration) (bool, error) {
	query := `
		INSERT INTO worker_locks (name, holder, heartbeat_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET holder = EXCLUDED.holder, heartbeat_at = NOW()
		WHERE worker_locks.holder = EXCLUDED.holder
		   OR worker_locks.heartbeat_at < NOW() - make_interval(secs => $3)
	`

	result, err := r.querier.Exec(ctx, query, name, holder, staleAfter.Seconds())
	if err != nil {
		r.logger.Error("Failed to acquire worker lock", "lock", name, "holder", holder, "error", err)
		return false, fmt.Errorf("failed to acquire worker lock: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Release drops the named lock if the caller still holds it
func (r *WorkerLockRepository) Release(ctx context.Context, name, holder string) error {
	query := `DELETE FROM worker_locks WHERE name = $1 AND holder = $2`

	if _, err := r.querier.Exec(ctx, query, name, holder); err != nil {
		r.logger.Error("Failed to release worker lock", "lock", name, "holder", holder, "error", err)
		return fmt.Errorf("failed to release worker lock: %w", err)
	}

	return nil
}
