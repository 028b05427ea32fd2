package withdrawal

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
)

// Common errors surfaced to the intake caller
var (
	ErrInvalidAmount             = errors.New("withdrawal amount must be positive")
	ErrUnknownAccount            = errors.New("payout account does not belong to member")
	ErrPendingWithdrawalExists   = errors.New("member already has a withdrawal in flight")
	ErrWithdrawalAlreadyTerminal = errors.New("withdrawal is already in a terminal status")
)

// Withdrawal is a member-initiated request to move ledger balance to an
// external payout account. It is created atomically with its bill and the
// ledger debit, and shares the bill's reference.
type Withdrawal struct {
	ID              uuid.UUID               `json:"id"`
	Reference       string                  `json:"reference"`
	MemberID        uuid.UUID               `json:"member_id"`
	PayoutAccountID uuid.UUID               `json:"payout_account_id"`
	Amount          int64                   `json:"amount"` // Stored in cents/minor units
	Status          shared.WithdrawalStatus `json:"status"`
	OperatorID      *uuid.UUID              `json:"operator_id,omitempty"`
	RejectReason    string                  `json:"reject_reason,omitempty"`
	Remark          string                  `json:"remark,omitempty"`
	ProcessedAt     *time.Time              `json:"processed_at,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// New creates a pending withdrawal for the given member and destination
func New(reference string, memberID, payoutAccountID uuid.UUID, amount int64) *Withdrawal {
	now := time.Now()
	return &Withdrawal{
		ID:              uuid.New(),
		Reference:       reference,
		MemberID:        memberID,
		PayoutAccountID: payoutAccountID,
		Amount:          amount,
		Status:          shared.WithdrawalStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Terminal reports whether the withdrawal reached SUCCESS or FAILED
func (w *Withdrawal) Terminal() bool {
	return w.Status.Terminal()
}
