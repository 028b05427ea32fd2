package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
	"github.com/rewardhub/settlement-engine/internal/platform/messaging/producers"
)

type outcomeHandler struct {
	txRunner    TxRunner
	payments    payment.Repository
	withdrawals withdrawal.Repository
	bills       bill.Repository
	refunder    Refunder
	publisher   producers.MessagePublisher
	logger      *slog.Logger
}

// NewOutcomeHandler creates the terminal-state handler shared by the
// dispatcher and the reconciler
func NewOutcomeHandler(
	txRunner TxRunner,
	payments payment.Repository,
	withdrawals withdrawal.Repository,
	bills bill.Repository,
	refunder Refunder,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) OutcomeHandler {
	return &outcomeHandler{
		txRunner:    txRunner,
		payments:    payments,
		withdrawals: withdrawals,
		bills:       bills,
		refunder:    refunder,
		publisher:   publisher,
		logger:      logger,
	}
}

// Succeed finalizes a settled payment: transaction, withdrawal and bill all
// reach SUCCESS in one database transaction. If the withdrawal is already
// terminal only the transaction row is reconciled, which makes repeated
// invocations for one reference harmless.
func (h *outcomeHandler) Succeed(ctx context.Context, reference string, response string) error {
	var finalized *withdrawal.Withdrawal

	err := h.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		finalized = nil

		if _, err := h.payments.WithTx(tx).LockByReference(ctx, reference); err != nil {
			return err
		}

		w, err := h.withdrawals.WithTx(tx).LockByReference(ctx, reference)
		if err != nil {
			return err
		}

		if err := h.payments.WithTx(tx).MarkSuccess(ctx, reference, response); err != nil {
			return err
		}

		if w.Terminal() {
			h.logger.Warn("Withdrawal already terminal, reconciled transaction row only",
				"reference", reference,
				"status", string(w.Status),
			)
			return nil
		}

		if err := h.withdrawals.WithTx(tx).MarkSuccess(ctx, w.ID, time.Now()); err != nil {
			return err
		}
		if err := h.bills.WithTx(tx).MarkSuccess(ctx, reference); err != nil {
			return err
		}

		finalized = w
		return nil
	})
	if err != nil {
		return err
	}

	if finalized != nil {
		h.publishEvent(ctx, finalized, shared.WithdrawalStatusSuccess, "")
		h.logger.Info("Withdrawal settled", "reference", reference)
	}

	return nil
}

// Fail finalizes a failed payment: the transaction and withdrawal reach
// FAILED and the member is refunded, atomically. Already-terminal
// withdrawals only get their transaction row reconciled; the refund guard
// inside Refunder keeps the credit single even if that short-circuit is
// bypassed.
func (h *outcomeHandler) Fail(ctx context.Context, reference string, errorMessage string, response string) error {
	var finalized *withdrawal.Withdrawal

	err := h.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		finalized = nil

		if _, err := h.payments.WithTx(tx).LockByReference(ctx, reference); err != nil {
			return err
		}

		w, err := h.withdrawals.WithTx(tx).LockByReference(ctx, reference)
		if err != nil {
			return err
		}

		if err := h.payments.WithTx(tx).MarkFailed(ctx, reference, errorMessage, response); err != nil {
			return err
		}

		if w.Terminal() {
			h.logger.Warn("Withdrawal already terminal, reconciled transaction row only",
				"reference", reference,
				"status", string(w.Status),
			)
			return nil
		}

		if err := h.withdrawals.WithTx(tx).MarkFailed(ctx, w.ID, errorMessage, time.Now()); err != nil {
			return err
		}
		if err := h.refunder.Refund(ctx, tx, w, errorMessage); err != nil {
			return err
		}

		finalized = w
		return nil
	})
	if err != nil {
		return err
	}

	if finalized != nil {
		h.publishEvent(ctx, finalized, shared.WithdrawalStatusFailed, errorMessage)
		h.logger.Info("Withdrawal failed and refunded", "reference", reference, "reason", errorMessage)
	}

	return nil
}

func (h *outcomeHandler) publishEvent(ctx context.Context, w *withdrawal.Withdrawal, status shared.WithdrawalStatus, reason string) {
	if h.publisher == nil {
		return
	}

	event := &shared.SettlementEvent{
		Reference:  w.Reference,
		MemberID:   w.MemberID,
		Status:     status,
		Amount:     w.Amount,
		Reason:     reason,
		OccurredAt: time.Now(),
	}
	if err := h.publisher.Publish(ctx, w.Reference, event); err != nil {
		h.logger.Error("Failed to publish settlement event", "reference", w.Reference, "error", err)
	}
}
