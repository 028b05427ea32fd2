package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/ledger"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
)

type ledgerStore struct {
	balances ledger.Repository
	logger   *slog.Logger
}

// NewLedgerStore creates the single balance mutation path
func NewLedgerStore(balances ledger.Repository, logger *slog.Logger) LedgerStore {
	return &ledgerStore{
		balances: balances,
		logger:   logger,
	}
}

// Adjust applies the signed delta under the member's balance row lock. A
// missing balance row is lazily created for credits; a debit against a
// missing row fails with ErrInsufficientBalance.
func (s *ledgerStore) Adjust(ctx context.Context, tx pgx.Tx, memberID uuid.UUID, delta int64, label shared.TransactionLabel, reference string) (*ledger.Balance, error) {
	return s.adjust(ctx, tx, memberID, delta, label, reference, false)
}

// AdjustAllowingNegative is Adjust without the non-negative floor. Reserved
// for corrective admin adjustments.
func (s *ledgerStore) AdjustAllowingNegative(ctx context.Context, tx pgx.Tx, memberID uuid.UUID, delta int64, label shared.TransactionLabel, reference string) (*ledger.Balance, error) {
	return s.adjust(ctx, tx, memberID, delta, label, reference, true)
}

func (s *ledgerStore) adjust(ctx context.Context, tx pgx.Tx, memberID uuid.UUID, delta int64, label shared.TransactionLabel, reference string, allowNegative bool) (*ledger.Balance, error) {
	repo := s.balances.WithTx(tx)

	balance, err := repo.LockForUpdate(ctx, memberID)
	if err != nil {
		if !errors.Is(err, ledger.ErrBalanceNotFound{}) {
			return nil, err
		}
		if delta < 0 && !allowNegative {
			return nil, ledger.ErrInsufficientBalance
		}
		balance = ledger.NewBalance(memberID)
		if err := repo.Create(ctx, balance); err != nil {
			return nil, err
		}
		// Re-lock the fresh row so the rest of the transaction holds it
		balance, err = repo.LockForUpdate(ctx, memberID)
		if err != nil {
			return nil, err
		}
	}

	before := balance.Balance
	if err := balance.Apply(delta, allowNegative); err != nil {
		return nil, err
	}

	if err := repo.Update(ctx, balance); err != nil {
		return nil, fmt.Errorf("failed to persist balance adjustment: %w", err)
	}

	record := &ledger.ChangeRecord{
		MemberID:      memberID,
		Delta:         delta,
		BalanceBefore: before,
		BalanceAfter:  balance.Balance,
		Label:         label,
		Reference:     reference,
		CreatedAt:     time.Now(),
	}
	if err := repo.AppendChange(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record balance change: %w", err)
	}

	s.logger.Debug("Adjusted member balance",
		"member_id", memberID.String(),
		"delta", delta,
		"balance_after", balance.Balance,
		"label", string(label),
		"reference", reference,
	)

	return balance, nil
}
