package worklock

import (
	"context"
	"time"
)

// Repository is the distributed mutual-exclusion guard for background
// workers. A lock whose heartbeat is older than staleAfter is treated as
// abandoned by a crashed holder and taken over.
type Repository interface {
	// TryAcquire returns true when the named lock is held by this holder
	// after the call: either it was free, already ours, or stale.
	TryAcquire(ctx context.Context, name, holder string, staleAfter time.Duration) (bool, error)

	// Release drops the lock if this holder still owns it
	Release(ctx context.Context, name, holder string) error
}
