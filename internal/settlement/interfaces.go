// Package settlement holds the core orchestration of the engine: withdrawal
// intake, admin approval and rejection, payment dispatch, outcome handling
// and refunds. Every state change runs inside an explicit database
// transaction under pessimistic row locks, always acquired in the order
// payment transaction -> withdrawal -> bill -> member balance.
package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/ledger"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
)

// TxRunner runs a function inside one database transaction, rolling back on
// error or panic. Satisfied by persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// LedgerStore is the single write path to member balances. Every adjustment
// locks the balance row and appends exactly one change record in the
// caller's transaction.
type LedgerStore interface {
	Adjust(ctx context.Context, tx pgx.Tx, memberID uuid.UUID, delta int64, label shared.TransactionLabel, reference string) (*ledger.Balance, error)
	AdjustAllowingNegative(ctx context.Context, tx pgx.Tx, memberID uuid.UUID, delta int64, label shared.TransactionLabel, reference string) (*ledger.Balance, error)
}

// IntakeService accepts withdrawal requests from members
type IntakeService interface {
	Submit(ctx context.Context, memberID, payoutAccountID uuid.UUID, amount int64) (*withdrawal.Withdrawal, error)
}

// BatchResult reports the per-id outcome of an admin batch operation.
// Skipped ids were not PENDING when the batch locked its rows.
type BatchResult struct {
	Processed []uuid.UUID `json:"processed"`
	Skipped   []uuid.UUID `json:"skipped"`
}

// AdminService approves or rejects pending withdrawals in batches
type AdminService interface {
	Approve(ctx context.Context, ids []uuid.UUID, operatorID uuid.UUID, remark string) (*BatchResult, error)
	Reject(ctx context.Context, ids []uuid.UUID, operatorID uuid.UUID, reason, remark string) (*BatchResult, error)
}

// Dispatcher sends approved payment transactions to the provider
// asynchronously. Dispatch never returns an error to the caller: rejections
// and call failures go through the outcome handler's failure path; an order
// the provider accepted awaits the reconciler.
type Dispatcher interface {
	Dispatch(txn *payment.Transaction)
	Close()
}

// OutcomeHandler finalizes a payment transaction and its withdrawal. Both
// methods are idempotent: calling them on an already-terminal withdrawal
// only reconciles the transaction row.
type OutcomeHandler interface {
	Succeed(ctx context.Context, reference string, response string) error
	Fail(ctx context.Context, reference string, errorMessage string, response string) error
}

// Refunder credits a failed withdrawal back to the member. The caller must
// hold the withdrawal row lock in tx; Refund locks the bill itself and is a
// no-op when the bill is already refunded.
type Refunder interface {
	Refund(ctx context.Context, tx pgx.Tx, w *withdrawal.Withdrawal, reason string) error
}
