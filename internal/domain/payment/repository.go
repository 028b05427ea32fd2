package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
)

// Filters narrows transaction listings for the admin UI
type Filters struct {
	MemberID  *uuid.UUID
	Status    *shared.PaymentStatus
	Reference string
	From      *time.Time
	To        *time.Time
}

// Repository manages payment transaction persistence
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByReference(ctx context.Context, reference string) (*Transaction, error)

	// LockByReference acquires a pessimistic lock on the transaction row.
	// This is always the first lock taken when finalizing an outcome.
	LockByReference(ctx context.Context, reference string) (*Transaction, error)

	// ListUnresolved returns transactions the reconciler must look at:
	// PENDING rows, plus terminal rows whose withdrawal is still PROCESSING
	// (a crash between persisting the provider verdict and finalizing the
	// withdrawal leaves that divergence behind).
	ListUnresolved(ctx context.Context, limit int) ([]*Transaction, error)

	// SetRequestPayload snapshots the outbound request before the provider
	// call so the attempt survives a crash mid-call
	SetRequestPayload(ctx context.Context, reference string, payload string, requestedAt time.Time) error

	// RecordResponse stores the provider acknowledgement while leaving the
	// transaction PENDING (acceptance is not settlement)
	RecordResponse(ctx context.Context, reference string, response string) error

	// MarkSuccess finalizes the transaction as SUCCESS
	MarkSuccess(ctx context.Context, reference string, response string) error

	// MarkFailed finalizes the transaction as FAILED with the provider error
	MarkFailed(ctx context.Context, reference string, errorMessage string, response string) error

	List(ctx context.Context, f Filters, limit, offset int) ([]*Transaction, error)
	Count(ctx context.Context, f Filters) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates a missing payment transaction
type ErrTransactionNotFound struct {
	Reference string
}

func (e ErrTransactionNotFound) Error() string {
	return "payment transaction not found: " + e.Reference
}

// Is matches any ErrTransactionNotFound when the target reference is empty
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}
