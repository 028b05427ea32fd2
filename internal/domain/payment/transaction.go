package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
)

// Transaction records one dispatch attempt to the external payment provider
// for a withdrawal. The reference equals the withdrawal/bill reference (it is
// the provider-facing order number). The row is created in the same database
// transaction that moves the withdrawal to PROCESSING, so a processing
// withdrawal always has a transaction row for the reconciler to find.
type Transaction struct {
	Reference       string               `json:"reference"`
	WithdrawalID    uuid.UUID            `json:"withdrawal_id"`
	MemberID        uuid.UUID            `json:"member_id"`
	Channel         string               `json:"channel"`
	Amount          int64                `json:"amount"` // Stored in cents/minor units
	BankCode        string               `json:"bank_code"`
	AccountNo       string               `json:"account_no"`
	AccountName     string               `json:"account_name"`
	Status          shared.PaymentStatus `json:"status"`
	RequestPayload  string               `json:"request_payload,omitempty"`
	ResponsePayload string               `json:"response_payload,omitempty"`
	ErrorMessage    string               `json:"error_message,omitempty"`
	RequestedAt     *time.Time           `json:"requested_at,omitempty"`
	RespondedAt     *time.Time           `json:"responded_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Terminal reports whether the transaction left PENDING
func (t *Transaction) Terminal() bool {
	return t.Status == shared.PaymentStatusSuccess || t.Status == shared.PaymentStatusFailed
}
