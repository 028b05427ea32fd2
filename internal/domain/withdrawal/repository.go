package withdrawal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
)

// Filters narrows withdrawal listings for the admin UI
type Filters struct {
	MemberID  *uuid.UUID
	Status    *shared.WithdrawalStatus
	Reference string
	From      *time.Time
	To        *time.Time
}

// Repository manages withdrawal persistence
type Repository interface {
	Create(ctx context.Context, w *Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Withdrawal, error)
	GetByReference(ctx context.Context, reference string) (*Withdrawal, error)

	// LockByReference acquires a pessimistic lock on the withdrawal row
	LockByReference(ctx context.Context, reference string) (*Withdrawal, error)

	// LockPendingByIDs locks exactly the subset of the given ids currently in
	// PENDING status and returns it. Ids in any other status are silently
	// excluded; this is the primary defense against two admins processing the
	// same batch.
	LockPendingByIDs(ctx context.Context, ids []uuid.UUID) ([]*Withdrawal, error)

	// HasNonTerminalByMember reports whether the member has a withdrawal in a
	// non-terminal status. Callers must hold the member's balance row lock so
	// two concurrent intakes serialize on the check.
	HasNonTerminalByMember(ctx context.Context, memberID uuid.UUID) (bool, error)

	// SetProcessing moves a pending withdrawal to PROCESSING under an admin
	SetProcessing(ctx context.Context, id uuid.UUID, operatorID uuid.UUID, remark string) error

	// MarkFailed finalizes the withdrawal as FAILED with a reason
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, processedAt time.Time) error

	// MarkSuccess finalizes the withdrawal as SUCCESS
	MarkSuccess(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	List(ctx context.Context, f Filters, limit, offset int) ([]*Withdrawal, error)
	Count(ctx context.Context, f Filters) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrWithdrawalNotFound indicates a missing withdrawal
type ErrWithdrawalNotFound struct {
	Reference string
}

func (e ErrWithdrawalNotFound) Error() string {
	return "withdrawal not found: " + e.Reference
}

// Is matches any ErrWithdrawalNotFound when the target reference is empty
func (e ErrWithdrawalNotFound) Is(target error) bool {
	t, ok := target.(ErrWithdrawalNotFound)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}
