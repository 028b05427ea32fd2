package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type outcomeFixture struct {
	payments    *MockPaymentRepository
	withdrawals *MockWithdrawalRepository
	bills       *MockBillRepository
	refunder    *MockRefunder
	publisher   *MockPublisher
	handler     OutcomeHandler
}

func newOutcomeFixture(t *testing.T) *outcomeFixture {
	t.Helper()

	f := &outcomeFixture{
		payments:    &MockPaymentRepository{},
		withdrawals: &MockWithdrawalRepository{},
		bills:       &MockBillRepository{},
		refunder:    &MockRefunder{},
		publisher:   &MockPublisher{},
	}
	f.handler = NewOutcomeHandler(
		&fakeTxRunner{},
		f.payments,
		f.withdrawals,
		f.bills,
		f.refunder,
		f.publisher,
		newTestLogger(),
	)
	return f
}

func pendingOutcomeRows(reference string) (*payment.Transaction, *withdrawal.Withdrawal) {
	w := withdrawal.New(reference, uuid.New(), uuid.New(), 5000)
	w.Status = shared.WithdrawalStatusProcessing
	txn := &payment.Transaction{
		Reference:    reference,
		WithdrawalID: w.ID,
		MemberID:     w.MemberID,
		Amount:       w.Amount,
		Status:       shared.PaymentStatusPending,
	}
	return txn, w
}

func TestOutcomeHandler_Succeed(t *testing.T) {
	ctx := context.Background()
	reference := "W20260831120000123456"

	t.Run("finalizes transaction, withdrawal and bill", func(t *testing.T) {
		f := newOutcomeFixture(t)
		txn, w := pendingOutcomeRows(reference)

		f.payments.On("LockByReference", ctx, reference).Return(txn, nil)
		f.withdrawals.On("LockByReference", ctx, reference).Return(w, nil)
		f.payments.On("MarkSuccess", ctx, reference, `{"code":1}`).Return(nil)
		f.withdrawals.On("MarkSuccess", ctx, w.ID, mock.Anything).Return(nil)
		f.bills.On("MarkSuccess", ctx, reference).Return(nil)
		f.publisher.On("Publish", ctx, reference, mock.MatchedBy(func(v interface{}) bool {
			event, ok := v.(*shared.SettlementEvent)
			return ok && event.Status == shared.WithdrawalStatusSuccess && event.Reference == reference
		})).Return(nil)

		err := f.handler.Succeed(ctx, reference, `{"code":1}`)
		require.NoError(t, err)
		f.payments.AssertExpectations(t)
		f.withdrawals.AssertExpectations(t)
		f.bills.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
		f.refunder.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("terminal withdrawal reconciles the transaction row only", func(t *testing.T) {
		f := newOutcomeFixture(t)
		txn, w := pendingOutcomeRows(reference)
		w.Status = shared.WithdrawalStatusSuccess

		f.payments.On("LockByReference", ctx, reference).Return(txn, nil)
		f.withdrawals.On("LockByReference", ctx, reference).Return(w, nil)
		f.payments.On("MarkSuccess", ctx, reference, `{"code":1}`).Return(nil)

		err := f.handler.Succeed(ctx, reference, `{"code":1}`)
		require.NoError(t, err)
		f.withdrawals.AssertNotCalled(t, "MarkSuccess", mock.Anything, mock.Anything, mock.Anything)
		f.bills.AssertNotCalled(t, "MarkSuccess", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fails when the withdrawal lock fails", func(t *testing.T) {
		f := newOutcomeFixture(t)
		txn, _ := pendingOutcomeRows(reference)
		lockErr := withdrawal.ErrWithdrawalNotFound{Reference: reference}

		f.payments.On("LockByReference", ctx, reference).Return(txn, nil)
		f.withdrawals.On("LockByReference", ctx, reference).Return(nil, lockErr)

		err := f.handler.Succeed(ctx, reference, `{"code":1}`)
		assert.ErrorIs(t, err, withdrawal.ErrWithdrawalNotFound{Reference: reference})
		f.payments.AssertNotCalled(t, "MarkSuccess", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publish failure does not fail the settlement", func(t *testing.T) {
		f := newOutcomeFixture(t)
		txn, w := pendingOutcomeRows(reference)

		f.payments.On("LockByReference", ctx, reference).Return(txn, nil)
		f.withdrawals.On("LockByReference", ctx, reference).Return(w, nil)
		f.payments.On("MarkSuccess", ctx, reference, "").Return(nil)
		f.withdrawals.On("MarkSuccess", ctx, w.ID, mock.Anything).Return(nil)
		f.bills.On("MarkSuccess", ctx, reference).Return(nil)
		f.publisher.On("Publish", ctx, reference, mock.Anything).Return(errors.New("broker down"))

		err := f.handler.Succeed(ctx, reference, "")
		require.NoError(t, err)
	})
}

func TestOutcomeHandler_Fail(t *testing.T) {
	ctx := context.Background()
	reference := "W20260831120000123456"
	reason := "insufficient channel balance"

	t.Run("fails transaction and withdrawal and refunds the member", func(t *testing.T) {
		f := newOutcomeFixture(t)
		txn, w := pendingOutcomeRows(reference)

		f.payments.On("LockByReference", ctx, reference).Return(txn, nil)
		f.withdrawals.On("LockByReference", ctx, reference).Return(w, nil)
		f.payments.On("MarkFailed", ctx, reference, reason, `{"code":2}`).Return(nil)
		f.withdrawals.On("MarkFailed", ctx, w.ID, reason, mock.Anything).Return(nil)
		f.refunder.On("Refund", ctx, nil, w, reason).Return(nil)
		f.publisher.On("Publish", ctx, reference, mock.MatchedBy(func(v interface{}) bool {
			event, ok := v.(*shared.SettlementEvent)
			return ok && event.Status == shared.WithdrawalStatusFailed && event.Reason == reason
		})).Return(nil)

		err := f.handler.Fail(ctx, reference, reason, `{"code":2}`)
		require.NoError(t, err)
		f.payments.AssertExpectations(t)
		f.withdrawals.AssertExpectations(t)
		f.refunder.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("terminal withdrawal reconciles the transaction row without a refund", func(t *testing.T) {
		f := newOutcomeFixture(t)
		txn, w := pendingOutcomeRows(reference)
		w.Status = shared.WithdrawalStatusFailed

		f.payments.On("LockByReference", ctx, reference).Return(txn, nil)
		f.withdrawals.On("LockByReference", ctx, reference).Return(w, nil)
		f.payments.On("MarkFailed", ctx, reference, reason, "").Return(nil)

		err := f.handler.Fail(ctx, reference, reason, "")
		require.NoError(t, err)
		f.refunder.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("refund failure rolls the outcome back", func(t *testing.T) {
		f := newOutcomeFixture(t)
		txn, w := pendingOutcomeRows(reference)
		refundErr := errors.New("balance update failed")

		f.payments.On("LockByReference", ctx, reference).Return(txn, nil)
		f.withdrawals.On("LockByReference", ctx, reference).Return(w, nil)
		f.payments.On("MarkFailed", ctx, reference, reason, "").Return(nil)
		f.withdrawals.On("MarkFailed", ctx, w.ID, reason, mock.Anything).Return(nil)
		f.refunder.On("Refund", ctx, nil, w, reason).Return(refundErr)

		err := f.handler.Fail(ctx, reference, reason, "")
		assert.ErrorIs(t, err, refundErr)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}
