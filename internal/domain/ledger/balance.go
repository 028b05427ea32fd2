package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
)

// Common errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Balance is a member's live ledger balance. It is mutated only through the
// ledger store, which pairs every mutation with one ChangeRecord in the same
// database transaction.
type Balance struct {
	MemberID  uuid.UUID `json:"member_id"`
	Balance   int64     `json:"balance"` // Stored in cents/minor units
	Version   int       `json:"version"` // For optimistic locking
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBalance creates a zero balance row for a member
func NewBalance(memberID uuid.UUID) *Balance {
	now := time.Now()
	return &Balance{
		MemberID:  memberID,
		Balance:   0,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply adds the signed delta to the balance. A result below zero is rejected
// with ErrInsufficientBalance unless allowNegative is set (corrective admin
// actions only).
func (b *Balance) Apply(delta int64, allowNegative bool) error {
	next := b.Balance + delta
	if next < 0 && !allowNegative {
		return ErrInsufficientBalance
	}

	b.Balance = next
	b.Version++
	b.UpdatedAt = time.Now()
	return nil
}

// ChangeRecord is one append-only audit row. Records are never updated or
// deleted; summing deltas per member reconstructs the live balance.
type ChangeRecord struct {
	ID            int64                   `json:"id"`
	MemberID      uuid.UUID               `json:"member_id"`
	Delta         int64                   `json:"delta"`
	BalanceBefore int64                   `json:"balance_before"`
	BalanceAfter  int64                   `json:"balance_after"`
	Label         shared.TransactionLabel `json:"label"`
	Reference     string                  `json:"reference"`
	CreatedAt     time.Time               `json:"created_at"`
}
