package bill

import (
	"time"

	"github.com/google/uuid"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
)

// Bill is the ledger-facing record of one financial event, one row per event.
// Withdrawal bills carry a negative amount and are authoritative on
// WithdrawalStatus; every other type is authoritative on SettlementStatus.
// At a terminal transition of a withdrawal bill both fields are set together,
// which is what the refund no-op check relies on.
type Bill struct {
	Reference        string                  `json:"reference"`
	MemberID         uuid.UUID               `json:"member_id"`
	Type             shared.BillType         `json:"type"`
	Amount           int64                   `json:"amount"` // Signed, cents/minor units
	SettlementStatus shared.SettlementStatus `json:"settlement_status"`
	WithdrawalStatus shared.WithdrawalStatus `json:"withdrawal_status"`
	TaskRef          string                  `json:"task_ref,omitempty"`
	WithdrawalRef    string                  `json:"withdrawal_ref,omitempty"`
	RelatedMemberID  *uuid.UUID              `json:"related_member_id,omitempty"`
	RelatedGroupID   *uuid.UUID              `json:"related_group_id,omitempty"`
	OperatorID       *uuid.UUID              `json:"operator_id,omitempty"`
	FailureReason    string                  `json:"failure_reason,omitempty"`
	Remark           string                  `json:"remark,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// NewWithdrawalBill creates the bill half of a withdrawal, sharing the
// withdrawal's reference and debiting the member (negative amount).
func NewWithdrawalBill(reference string, memberID uuid.UUID, amount int64) *Bill {
	now := time.Now()
	return &Bill{
		Reference:        reference,
		MemberID:         memberID,
		Type:             shared.BillTypeWithdrawal,
		Amount:           -amount,
		SettlementStatus: shared.SettlementStatusPending,
		WithdrawalStatus: shared.WithdrawalStatusPending,
		WithdrawalRef:    reference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Refunded reports whether the bill has already been refunded: both status
// fields FAILED. This is the idempotency guard for the refund path.
func (b *Bill) Refunded() bool {
	return b.WithdrawalStatus == shared.WithdrawalStatusFailed &&
		b.SettlementStatus == shared.SettlementStatusFailed
}

// Terminal reports whether the authoritative status field reached a terminal
// state
func (b *Bill) Terminal() bool {
	if b.Type == shared.BillTypeWithdrawal {
		return b.WithdrawalStatus.Terminal()
	}
	return b.SettlementStatus == shared.SettlementStatusSuccess ||
		b.SettlementStatus == shared.SettlementStatusFailed
}
