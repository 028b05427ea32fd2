package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines ledger balance persistence. Mutations must run inside
// the caller's transaction (WithTx) so a balance change and its sibling
// writes are never observed independently.
type Repository interface {
	Create(ctx context.Context, balance *Balance) error
	GetByMemberID(ctx context.Context, memberID uuid.UUID) (*Balance, error)

	// LockForUpdate acquires a pessimistic lock on the member's balance row.
	// The balance is the most contended row in the system; every mutation
	// goes through this lock.
	LockForUpdate(ctx context.Context, memberID uuid.UUID) (*Balance, error)
	Update(ctx context.Context, balance *Balance) error

	// AppendChange inserts one immutable audit row
	AppendChange(ctx context.Context, record *ChangeRecord) error
	ListChanges(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*ChangeRecord, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrBalanceNotFound indicates the member has no balance row yet
type ErrBalanceNotFound struct {
	MemberID uuid.UUID
}

func (e ErrBalanceNotFound) Error() string {
	return "ledger balance not found for member: " + e.MemberID.String()
}

// Is matches any ErrBalanceNotFound when the target carries the nil UUID
func (e ErrBalanceNotFound) Is(target error) bool {
	t, ok := target.(ErrBalanceNotFound)
	if !ok {
		return false
	}
	if t.MemberID == uuid.Nil {
		return true
	}
	return e.MemberID == t.MemberID
}
