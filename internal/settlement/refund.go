package settlement

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
)

type refunder struct {
	ledgerStore LedgerStore
	bills       bill.Repository
	logger      *slog.Logger
}

// NewRefunder creates the refund component shared by rejection and failure
// paths
func NewRefunder(ledgerStore LedgerStore, bills bill.Repository, logger *slog.Logger) Refunder {
	return &refunder{
		ledgerStore: ledgerStore,
		bills:       bills,
		logger:      logger,
	}
}

// Refund credits the withdrawn amount back to the member and marks the bill
// failed, all inside the caller's transaction. The bill row lock plus the
// both-fields-FAILED check make a second refund of the same withdrawal a
// no-op, so the member is never credited twice.
func (r *refunder) Refund(ctx context.Context, tx pgx.Tx, w *withdrawal.Withdrawal, reason string) error {
	b, err := r.bills.WithTx(tx).LockByReference(ctx, w.Reference)
	if err != nil {
		return err
	}

	if b.Refunded() {
		r.logger.Warn("Skipping refund for already refunded withdrawal", "reference", w.Reference)
		return nil
	}

	amount := b.Amount
	if amount < 0 {
		amount = -amount
	}

	if _, err := r.ledgerStore.Adjust(ctx, tx, w.MemberID, amount, shared.LabelWithdrawRefund, w.Reference); err != nil {
		return err
	}

	if err := r.bills.WithTx(tx).MarkFailed(ctx, w.Reference, reason); err != nil {
		return err
	}

	r.logger.Info("Refunded withdrawal",
		"reference", w.Reference,
		"member_id", w.MemberID.String(),
		"amount", amount,
		"reason", reason,
	)

	return nil
}
