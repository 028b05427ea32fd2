package shared

// WithdrawalStatus tracks a withdrawal (and its bill) through the payout
// lifecycle. Transitions are forward-only; SUCCESS and FAILED are terminal.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "PENDING"
	WithdrawalStatusProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalStatusSuccess    WithdrawalStatus = "SUCCESS"
	WithdrawalStatusFailed     WithdrawalStatus = "FAILED"
)

// Terminal reports whether no further transition is permitted.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusSuccess || s == WithdrawalStatusFailed
}

// SettlementStatus is the generic settlement state used by non-withdrawal
// bills (task rewards, invite rewards, group commissions). Withdrawal bills
// are authoritative on WithdrawalStatus instead, but both fields are set in
// lockstep once a withdrawal bill reaches a terminal state.
type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "PENDING"
	SettlementStatusSuccess SettlementStatus = "SUCCESS"
	SettlementStatusFailed  SettlementStatus = "FAILED"
)

// PaymentStatus tracks one dispatch attempt against the payment provider.
// Transitions are one-directional out of PENDING.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// BillType identifies the financial event a bill records
type BillType string

const (
	BillTypeWithdrawal      BillType = "WITHDRAWAL"
	BillTypeTaskReward      BillType = "TASK_REWARD"
	BillTypeInviteReward    BillType = "INVITE_REWARD"
	BillTypeGroupCommission BillType = "GROUP_COMMISSION"
)

// TransactionLabel tags a balance change record with its originating action
type TransactionLabel string

const (
	LabelWithdraw        TransactionLabel = "WITHDRAW"
	LabelWithdrawRefund  TransactionLabel = "WITHDRAW_REFUND"
	LabelTaskReward      TransactionLabel = "TASK_REWARD"
	LabelInviteReward    TransactionLabel = "INVITE_REWARD"
	LabelGroupCommission TransactionLabel = "GROUP_COMMISSION"
	LabelAdminAdjustment TransactionLabel = "ADMIN_ADJUSTMENT"
)

// FailureReason defines settlement failure categories recorded on bills,
// withdrawals and payment transactions
type FailureReason string

const (
	FailureReasonInsufficientBalance FailureReason = "INSUFFICIENT_BALANCE"
	FailureReasonUnknownAccount      FailureReason = "UNKNOWN_ACCOUNT"
	FailureReasonAdminRejected       FailureReason = "ADMIN_REJECTED"
	FailureReasonProviderRejected    FailureReason = "PROVIDER_REJECTED"
	FailureReasonProviderCallFailed  FailureReason = "PROVIDER_CALL_FAILED"
	FailureReasonUnknownError        FailureReason = "UNKNOWN_ERROR"
)
