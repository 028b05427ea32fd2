package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/payout"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
)

type intakeService struct {
	txRunner    TxRunner
	ledgerStore LedgerStore
	withdrawals withdrawal.Repository
	bills       bill.Repository
	accounts    payout.Repository
	logger      *slog.Logger
}

// NewIntakeService creates the withdrawal intake service
func NewIntakeService(
	txRunner TxRunner,
	ledgerStore LedgerStore,
	withdrawals withdrawal.Repository,
	bills bill.Repository,
	accounts payout.Repository,
	logger *slog.Logger,
) IntakeService {
	return &intakeService{
		txRunner:    txRunner,
		ledgerStore: ledgerStore,
		withdrawals: withdrawals,
		bills:       bills,
		accounts:    accounts,
		logger:      logger,
	}
}

// Submit creates a pending withdrawal, debiting the member's balance and
// writing the withdrawal, its bill and the audit record in one transaction.
// The debit runs first: it takes the member's balance row lock, which
// serializes concurrent submissions so the one-in-flight check cannot race.
func (s *intakeService) Submit(ctx context.Context, memberID, payoutAccountID uuid.UUID, amount int64) (*withdrawal.Withdrawal, error) {
	if amount <= 0 {
		return nil, withdrawal.ErrInvalidAmount
	}

	account, err := s.accounts.GetByID(ctx, payoutAccountID)
	if err != nil {
		return nil, err
	}
	if account.MemberID != memberID {
		return nil, withdrawal.ErrUnknownAccount
	}

	reference := shared.NewWithdrawalReference()
	w := withdrawal.New(reference, memberID, payoutAccountID, amount)

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.ledgerStore.Adjust(ctx, tx, memberID, -amount, shared.LabelWithdraw, reference); err != nil {
			return err
		}

		// Under the balance lock now; safe to check for in-flight rows
		inFlight, err := s.withdrawals.WithTx(tx).HasNonTerminalByMember(ctx, memberID)
		if err != nil {
			return err
		}
		if inFlight {
			return withdrawal.ErrPendingWithdrawalExists
		}

		if err := s.withdrawals.WithTx(tx).Create(ctx, w); err != nil {
			return err
		}

		return s.bills.WithTx(tx).Create(ctx, bill.NewWithdrawalBill(reference, memberID, amount))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Accepted withdrawal request",
		"reference", reference,
		"member_id", memberID.String(),
		"amount", amount,
	)

	return w, nil
}
