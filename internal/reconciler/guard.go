package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rewardhub/settlement-engine/internal/domain/worklock"
)

// lockGuard wraps the worker_locks row that keeps at most one reconciler
// instance active. Acquisition is retried every poll cycle, so a replica
// takes over as soon as the previous holder's heartbeat goes stale.
type lockGuard struct {
	locks      worklock.Repository
	name       string
	holder     string
	staleAfter time.Duration
	logger     *slog.Logger
}

func newLockGuard(locks worklock.Repository, name string, staleAfter time.Duration, logger *slog.Logger) *lockGuard {
	return &lockGuard{
		locks:      locks,
		name:       name,
		holder:     newHolderID(),
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// newHolderID identifies this process instance. The hostname keeps the
// worker_locks row readable during incidents; the random suffix separates
// restarts on the same host.
func newHolderID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}

// acquire attempts to take or refresh the lock. A false return means
// another live holder owns it and this cycle should be skipped.
func (g *lockGuard) acquire(ctx context.Context) bool {
	acquired, err := g.locks.TryAcquire(ctx, g.name, g.holder, g.staleAfter)
	if err != nil {
		g.logger.Error("Failed to acquire reconciler lock", "lock", g.name, "holder", g.holder, "error", err)
		return false
	}
	if !acquired {
		g.logger.Debug("Reconciler lock held elsewhere, skipping cycle", "lock", g.name, "holder", g.holder)
	}
	return acquired
}

func (g *lockGuard) release(ctx context.Context) {
	if err := g.locks.Release(ctx, g.name, g.holder); err != nil {
		g.logger.Warn("Failed to release reconciler lock", "lock", g.name, "holder", g.holder, "error", err)
	}
}
