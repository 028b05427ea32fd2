package bill

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages bill persistence. Status updates are forward-only; the
// SQL guards refuse to move a terminal bill.
type Repository interface {
	Create(ctx context.Context, b *Bill) error
	GetByReference(ctx context.Context, reference string) (*Bill, error)

	// LockByReference acquires a pessimistic lock on the bill row. Callers
	// mutating a withdrawal bill must already hold the withdrawal row lock
	// (lock order: transaction, withdrawal, bill).
	LockByReference(ctx context.Context, reference string) (*Bill, error)

	// SetProcessing moves a pending withdrawal bill to PROCESSING
	SetProcessing(ctx context.Context, reference string, operatorID uuid.UUID) error

	// MarkFailed sets both status fields to FAILED with the reason
	MarkFailed(ctx context.Context, reference string, reason string) error

	// MarkSuccess sets both status fields to SUCCESS
	MarkSuccess(ctx context.Context, reference string) error

	WithTx(tx pgx.Tx) Repository
}

// ErrBillNotFound indicates a missing bill
type ErrBillNotFound struct {
	Reference string
}

func (e ErrBillNotFound) Error() string {
	return "bill not found: " + e.Reference
}

// Is matches any ErrBillNotFound when the target reference is empty
func (e ErrBillNotFound) Is(target error) bool {
	t, ok := target.(ErrBillNotFound)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}
