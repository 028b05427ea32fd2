package settlement

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/ledger"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/payout"
	"github.com/rewardhub/settlement-engine/internal/domain/providerlog"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
	"github.com/rewardhub/settlement-engine/internal/provider"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeTxRunner runs the function directly; mocked repositories return
// themselves from WithTx, so no real transaction is needed.
type fakeTxRunner struct {
	err error // Returned instead of running fn when set
}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, b *ledger.Balance) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByMemberID(ctx context.Context, memberID uuid.UUID) (*ledger.Balance, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Balance), args.Error(1)
}

func (m *MockLedgerRepository) LockForUpdate(ctx context.Context, memberID uuid.UUID) (*ledger.Balance, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Balance), args.Error(1)
}

func (m *MockLedgerRepository) Update(ctx context.Context, b *ledger.Balance) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockLedgerRepository) AppendChange(ctx context.Context, record *ledger.ChangeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockLedgerRepository) ListChanges(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*ledger.ChangeRecord, error) {
	args := m.Called(ctx, memberID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.ChangeRecord), args.Error(1)
}

func (m *MockLedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return m
}

type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, w *withdrawal.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*withdrawal.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) GetByReference(ctx context.Context, reference string) (*withdrawal.Withdrawal, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*withdrawal.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) LockByReference(ctx context.Context, reference string) (*withdrawal.Withdrawal, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*withdrawal.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) LockPendingByIDs(ctx context.Context, ids []uuid.UUID) ([]*withdrawal.Withdrawal, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*withdrawal.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) HasNonTerminalByMember(ctx context.Context, memberID uuid.UUID) (bool, error) {
	args := m.Called(ctx, memberID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) SetProcessing(ctx context.Context, id uuid.UUID, operatorID uuid.UUID, remark string) error {
	args := m.Called(ctx, id, operatorID, remark)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, processedAt time.Time) error {
	args := m.Called(ctx, id, reason, processedAt)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) MarkSuccess(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	args := m.Called(ctx, id, processedAt)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) List(ctx context.Context, f withdrawal.Filters, limit, offset int) ([]*withdrawal.Withdrawal, error) {
	args := m.Called(ctx, f, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*withdrawal.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) Count(ctx context.Context, f withdrawal.Filters) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWithdrawalRepository) WithTx(tx pgx.Tx) withdrawal.Repository {
	return m
}

type MockBillRepository struct {
	mock.Mock
}

func (m *MockBillRepository) Create(ctx context.Context, b *bill.Bill) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBillRepository) GetByReference(ctx context.Context, reference string) (*bill.Bill, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bill.Bill), args.Error(1)
}

func (m *MockBillRepository) LockByReference(ctx context.Context, reference string) (*bill.Bill, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bill.Bill), args.Error(1)
}

func (m *MockBillRepository) SetProcessing(ctx context.Context, reference string, operatorID uuid.UUID) error {
	args := m.Called(ctx, reference, operatorID)
	return args.Error(0)
}

func (m *MockBillRepository) MarkFailed(ctx context.Context, reference string, reason string) error {
	args := m.Called(ctx, reference, reason)
	return args.Error(0)
}

func (m *MockBillRepository) MarkSuccess(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

func (m *MockBillRepository) WithTx(tx pgx.Tx) bill.Repository {
	return m
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, t *payment.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByReference(ctx context.Context, reference string) (*payment.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockPaymentRepository) LockByReference(ctx context.Context, reference string) (*payment.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockPaymentRepository) ListUnresolved(ctx context.Context, limit int) ([]*payment.Transaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Transaction), args.Error(1)
}

func (m *MockPaymentRepository) SetRequestPayload(ctx context.Context, reference string, payload string, requestedAt time.Time) error {
	args := m.Called(ctx, reference, payload, requestedAt)
	return args.Error(0)
}

func (m *MockPaymentRepository) RecordResponse(ctx context.Context, reference string, response string) error {
	args := m.Called(ctx, reference, response)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkSuccess(ctx context.Context, reference string, response string) error {
	args := m.Called(ctx, reference, response)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkFailed(ctx context.Context, reference string, errorMessage string, response string) error {
	args := m.Called(ctx, reference, errorMessage, response)
	return args.Error(0)
}

func (m *MockPaymentRepository) List(ctx context.Context, f payment.Filters, limit, offset int) ([]*payment.Transaction, error) {
	args := m.Called(ctx, f, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Transaction), args.Error(1)
}

func (m *MockPaymentRepository) Count(ctx context.Context, f payment.Filters) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentRepository) WithTx(tx pgx.Tx) payment.Repository {
	return m
}

type MockPayoutRepository struct {
	mock.Mock
}

func (m *MockPayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Account), args.Error(1)
}

func (m *MockPayoutRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]*payout.Account, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payout.Account), args.Error(1)
}

func (m *MockPayoutRepository) WithTx(tx pgx.Tx) payout.Repository {
	return m
}

type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) Disburse(ctx context.Context, req *provider.DisburseRequest) (*provider.DisburseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.DisburseResult), args.Error(1)
}

func (m *MockProviderClient) QueryStatus(ctx context.Context, orderNo string) (*provider.QueryResult, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.QueryResult), args.Error(1)
}

type MockCallLogRepository struct {
	mock.Mock
}

func (m *MockCallLogRepository) Append(ctx context.Context, record *providerlog.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockCallLogRepository) ListByReference(ctx context.Context, reference string, limit, offset int) ([]*providerlog.Record, error) {
	args := m.Called(ctx, reference, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*providerlog.Record), args.Error(1)
}

type MockRefunder struct {
	mock.Mock
}

func (m *MockRefunder) Refund(ctx context.Context, tx pgx.Tx, w *withdrawal.Withdrawal, reason string) error {
	args := m.Called(ctx, tx, w, reason)
	return args.Error(0)
}

type MockOutcomeHandler struct {
	mock.Mock
}

func (m *MockOutcomeHandler) Succeed(ctx context.Context, reference string, response string) error {
	args := m.Called(ctx, reference, response)
	return args.Error(0)
}

func (m *MockOutcomeHandler) Fail(ctx context.Context, reference string, errorMessage string, response string) error {
	args := m.Called(ctx, reference, errorMessage, response)
	return args.Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(txn *payment.Transaction) {
	m.Called(txn)
}

func (m *MockDispatcher) Close() {
	m.Called()
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) Adjust(ctx context.Context, tx pgx.Tx, memberID uuid.UUID, delta int64, label shared.TransactionLabel, reference string) (*ledger.Balance, error) {
	args := m.Called(ctx, tx, memberID, delta, label, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Balance), args.Error(1)
}

func (m *MockLedgerStore) AdjustAllowingNegative(ctx context.Context, tx pgx.Tx, memberID uuid.UUID, delta int64, label shared.TransactionLabel, reference string) (*ledger.Balance, error) {
	args := m.Called(ctx, tx, memberID, delta, label, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Balance), args.Error(1)
}
