package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/payout"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
	"github.com/rewardhub/settlement-engine/internal/platform/messaging/producers"
)

type adminService struct {
	txRunner    TxRunner
	withdrawals withdrawal.Repository
	bills       bill.Repository
	payments    payment.Repository
	accounts    payout.Repository
	refunder    Refunder
	dispatcher  Dispatcher
	publisher   producers.MessagePublisher
	channel     string
	logger      *slog.Logger
}

// NewAdminService creates the batch approval/rejection service
func NewAdminService(
	txRunner TxRunner,
	withdrawals withdrawal.Repository,
	bills bill.Repository,
	payments payment.Repository,
	accounts payout.Repository,
	refunder Refunder,
	dispatcher Dispatcher,
	publisher producers.MessagePublisher,
	channel string,
	logger *slog.Logger,
) AdminService {
	return &adminService{
		txRunner:    txRunner,
		withdrawals: withdrawals,
		bills:       bills,
		payments:    payments,
		accounts:    accounts,
		refunder:    refunder,
		dispatcher:  dispatcher,
		publisher:   publisher,
		channel:     channel,
		logger:      logger,
	}
}

// Approve moves a batch of pending withdrawals to PROCESSING, creating one
// payment transaction per row in the same database transaction. Rows no
// longer pending are skipped, not failed. Dispatch to the provider happens
// only after commit, so a crash before commit leaves nothing in flight.
func (s *adminService) Approve(ctx context.Context, ids []uuid.UUID, operatorID uuid.UUID, remark string) (*BatchResult, error) {
	if len(ids) == 0 {
		return &BatchResult{}, nil
	}

	var created []*payment.Transaction
	result := &BatchResult{}

	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		created = created[:0]
		result.Processed = result.Processed[:0]

		locked, err := s.withdrawals.WithTx(tx).LockPendingByIDs(ctx, ids)
		if err != nil {
			return err
		}

		for _, w := range locked {
			account, err := s.accounts.WithTx(tx).GetByID(ctx, w.PayoutAccountID)
			if err != nil {
				return fmt.Errorf("withdrawal %s: %w", w.Reference, err)
			}

			if err := s.withdrawals.WithTx(tx).SetProcessing(ctx, w.ID, operatorID, remark); err != nil {
				return err
			}
			if err := s.bills.WithTx(tx).SetProcessing(ctx, w.Reference, operatorID); err != nil {
				return err
			}

			channel := account.Channel
			if channel == "" {
				channel = s.channel
			}

			now := time.Now()
			txn := &payment.Transaction{
				Reference:    w.Reference,
				WithdrawalID: w.ID,
				MemberID:     w.MemberID,
				Channel:      channel,
				Amount:       w.Amount,
				BankCode:     account.BankCode,
				AccountNo:    account.AccountNo,
				AccountName:  account.AccountName,
				Status:       shared.PaymentStatusPending,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.payments.WithTx(tx).Create(ctx, txn); err != nil {
				return err
			}

			created = append(created, txn)
			result.Processed = append(result.Processed, w.ID)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Skipped = missingIDs(ids, result.Processed)

	for _, txn := range created {
		s.dispatcher.Dispatch(txn)
	}

	s.logger.Info("Approved withdrawal batch",
		"operator_id", operatorID.String(),
		"approved", len(result.Processed),
		"skipped", len(result.Skipped),
	)

	return result, nil
}

// Reject fails a batch of pending withdrawals and refunds each one. The
// refund and the status transitions for one withdrawal commit atomically
// with the rest of the batch.
func (s *adminService) Reject(ctx context.Context, ids []uuid.UUID, operatorID uuid.UUID, reason, remark string) (*BatchResult, error) {
	if len(ids) == 0 {
		return &BatchResult{}, nil
	}
	if reason == "" {
		reason = string(shared.FailureReasonAdminRejected)
	}

	var rejected []*withdrawal.Withdrawal
	result := &BatchResult{}

	err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		rejected = rejected[:0]
		result.Processed = result.Processed[:0]

		locked, err := s.withdrawals.WithTx(tx).LockPendingByIDs(ctx, ids)
		if err != nil {
			return err
		}

		for _, w := range locked {
			if err := s.withdrawals.WithTx(tx).MarkFailed(ctx, w.ID, reason, time.Now()); err != nil {
				return err
			}
			if err := s.refunder.Refund(ctx, tx, w, reason); err != nil {
				return err
			}

			rejected = append(rejected, w)
			result.Processed = append(result.Processed, w.ID)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Skipped = missingIDs(ids, result.Processed)

	for _, w := range rejected {
		s.publishEvent(ctx, w, shared.WithdrawalStatusFailed, reason)
	}

	s.logger.Info("Rejected withdrawal batch",
		"operator_id", operatorID.String(),
		"rejected", len(result.Processed),
		"skipped", len(result.Skipped),
		"reason", reason,
	)

	return result, nil
}

func (s *adminService) publishEvent(ctx context.Context, w *withdrawal.Withdrawal, status shared.WithdrawalStatus, reason string) {
	if s.publisher == nil {
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
	if err := s.publisher.Publish(ctx, w.Reference, event); err != nil {
		s.logger.Error("Failed to publish settlement event", "reference", w.Reference, "error", err)
	}
}

// missingIDs returns the ids not present in processed, preserving input order
func missingIDs(ids, processed []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(processed))
	for _, id := range processed {
		seen[id] = struct{}{}
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
