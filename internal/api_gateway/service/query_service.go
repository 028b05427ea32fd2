package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/providerlog"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
)

const maxProviderCallRecords = 50

// QueryServiceImpl implements the QueryService interface
type QueryServiceImpl struct {
	withdrawals withdrawal.Repository
	bills       bill.Repository
	payments    payment.Repository
	callLog     providerlog.Repository
	logger      *slog.Logger
}

// NewQueryService creates a new read-side query service. callLog may be nil
// when the call archive is disabled; transaction lookups then return an
// empty history.
func NewQueryService(
	logger *slog.Logger,
	withdrawals withdrawal.Repository,
	bills bill.Repository,
	payments payment.Repository,
	callLog providerlog.Repository,
) QueryService {
	return &QueryServiceImpl{
		withdrawals: withdrawals,
		bills:       bills,
		payments:    payments,
		callLog:     callLog,
		logger:      logger,
	}
}

// ListWithdrawals retrieves a filtered, paginated withdrawal listing
func (s *QueryServiceImpl) ListWithdrawals(ctx context.Context, f withdrawal.Filters, page, perPage int) ([]*withdrawal.Withdrawal, int64, error) {
	offset := (page - 1) * perPage

	rows, err := s.withdrawals.List(ctx, f, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.withdrawals.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// GetWithdrawal retrieves a withdrawal and its bill by reference. Returns
// (nil, nil, nil) when the withdrawal does not exist. A missing bill is a
// data inconsistency; the withdrawal is still returned, with a nil bill.
func (s *QueryServiceImpl) GetWithdrawal(ctx context.Context, reference string) (*withdrawal.Withdrawal, *bill.Bill, error) {
	w, err := s.withdrawals.GetByReference(ctx, reference)
	if err != nil {
		var notFound withdrawal.ErrWithdrawalNotFound
		if errors.As(err, &notFound) {
			s.logger.Info("Withdrawal not found", "reference", reference)
			return nil, nil, nil
		}
		s.logger.Error("Failed to get withdrawal by reference", "reference", reference, "error", err)
		return nil, nil, err
	}

	b, err := s.bills.GetByReference(ctx, reference)
	if err != nil {
		s.logger.Warn("Failed to load bill for withdrawal", "reference", reference, "error", err)
		return w, nil, nil
	}

	return w, b, nil
}

// ListTransactions retrieves a filtered, paginated payment transaction listing
func (s *QueryServiceImpl) ListTransactions(ctx context.Context, f payment.Filters, page, perPage int) ([]*payment.Transaction, int64, error) {
	offset := (page - 1) * perPage

	rows, err := s.payments.List(ctx, f, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.payments.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// GetTransaction retrieves a payment transaction and its provider call
// history. A missing call archive degrades to an empty history rather than
// failing the lookup.
func (s *QueryServiceImpl) GetTransaction(ctx context.Context, reference string) (*payment.Transaction, []*providerlog.Record, error) {
	txn, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		var notFound payment.ErrTransactionNotFound
		if errors.As(err, &notFound) {
			s.logger.Info("Payment transaction not found", "reference", reference)
			return nil, nil, nil
		}
		s.logger.Error("Failed to get payment transaction", "reference", reference, "error", err)
		return nil, nil, err
	}

	if s.callLog == nil {
		return txn, nil, nil
	}

	calls, err := s.callLog.ListByReference(ctx, reference, maxProviderCallRecords, 0)
	if err != nil {
		s.logger.Warn("Failed to load provider call history", "reference", reference, "error", err)
		return txn, nil, nil
	}

	return txn, calls, nil
}
