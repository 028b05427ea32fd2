package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func billTestRow(b *bill.Bill) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"reference", "member_id", "type", "amount", "settlement_status", "withdrawal_status",
		"task_ref", "withdrawal_ref", "related_member_id", "related_group_id", "operator_id",
		"failure_reason", "remark", "created_at", "updated_at",
	}).AddRow(
		b.Reference, b.MemberID, b.Type, b.Amount, b.SettlementStatus, b.WithdrawalStatus,
		b.TaskRef, b.WithdrawalRef, b.RelatedMemberID, b.RelatedGroupID, b.OperatorID,
		b.FailureReason, b.Remark, b.CreatedAt, b.UpdatedAt,
	)
}

func TestBillRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &BillRepository{querier: mock, logger: logger}
	b := bill.NewWithdrawalBill("W20260831120000123456", uuid.New(), 5000)

	query := `
		INSERT INTO bills \(reference, member_id, type, amount, settlement_status, withdrawal_status, task_ref, withdrawal_ref, related_member_id, related_group_id, operator_id, failure_reason, remark, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11, \$12, \$13, \$14, \$15\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(b.Reference, b.MemberID, b.Type, b.Amount, b.SettlementStatus, b.WithdrawalStatus,
				b.TaskRef, b.WithdrawalRef, b.RelatedMemberID, b.RelatedGroupID, b.OperatorID,
				b.FailureReason, b.Remark, b.CreatedAt, b.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, b)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(b.Reference, b.MemberID, b.Type, b.Amount, b.SettlementStatus, b.WithdrawalStatus,
				b.TaskRef, b.WithdrawalRef, b.RelatedMemberID, b.RelatedGroupID, b.OperatorID,
				b.FailureReason, b.Remark, b.CreatedAt, b.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, b)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create bill")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBillRepository_LockByReference(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &BillRepository{querier: mock, logger: logger}
	expected := bill.NewWithdrawalBill("W20260831120000123456", uuid.New(), 5000)

	query := regexp.QuoteMeta(`SELECT ` + billColumns + ` FROM bills WHERE reference = $1 FOR UPDATE`)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.Reference).WillReturnRows(billTestRow(expected))

		b, err := repo.LockByReference(ctx, expected.Reference)
		assert.NoError(t, err)
		assert.Equal(t, expected, b)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.Reference).WillReturnError(pgx.ErrNoRows)

		b, err := repo.LockByReference(ctx, expected.Reference)
		assert.Error(t, err)
		assert.Nil(t, b)
		var notFound bill.ErrBillNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, expected.Reference, notFound.Reference)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBillRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &BillRepository{querier: mock, logger: logger}
	reference := "W20260831120000123456"

	query := `
		UPDATE bills
		SET withdrawal_status = \$1, settlement_status = \$2, failure_reason = \$3, updated_at = NOW\(\)
		WHERE reference = \$4 AND NOT \(withdrawal_status = \$1 AND settlement_status = \$2\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.WithdrawalStatusFailed, shared.SettlementStatusFailed, string(shared.FailureReasonProviderRejected), reference).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkFailed(ctx, reference, string(shared.FailureReasonProviderRejected))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already failed", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.WithdrawalStatusFailed, shared.SettlementStatusFailed, string(shared.FailureReasonProviderRejected), reference).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkFailed(ctx, reference, string(shared.FailureReasonProviderRejected))
		assert.Error(t, err)
		var notFound bill.ErrBillNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBillRepository_MarkSuccess(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &BillRepository{querier: mock, logger: logger}
	reference := "W20260831120000123456"

	query := `
		UPDATE bills
		SET withdrawal_status = \$1, settlement_status = \$2, updated_at = NOW\(\)
		WHERE reference = \$3 AND NOT \(withdrawal_status = \$1 AND settlement_status = \$2\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.WithdrawalStatusSuccess, shared.SettlementStatusSuccess, reference).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkSuccess(ctx, reference)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("update db error")
		mock.ExpectExec(query).
			WithArgs(shared.WithdrawalStatusSuccess, shared.SettlementStatusSuccess, reference).
			WillReturnError(dbErr)

		err := repo.MarkSuccess(ctx, reference)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to mark bill success")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
