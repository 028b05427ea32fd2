package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rewardhub/settlement-engine/internal/domain/ledger"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLedgerRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}

	b := &ledger.Balance{
		MemberID:  uuid.New(),
		Balance:   10000,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
		INSERT INTO member_balances \(member_id, balance, version, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(b.MemberID, b.Balance, b.Version, b.CreatedAt, b.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, b)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(b.MemberID, b.Balance, b.Version, b.CreatedAt, b.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, b)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create member balance")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	memberID := uuid.New()
	now := time.Now()

	expected := &ledger.Balance{
		MemberID:  memberID,
		Balance:   25000,
		Version:   4,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		SELECT member_id, balance, version, created_at, updated_at
		FROM member_balances
		WHERE member_id = \$1
		FOR UPDATE
	`
	rows := pgxmock.NewRows([]string{"member_id", "balance", "version", "created_at", "updated_at"}).
		AddRow(expected.MemberID, expected.Balance, expected.Version, expected.CreatedAt, expected.UpdatedAt)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(memberID).WillReturnRows(rows)

		b, err := repo.LockForUpdate(ctx, memberID)
		assert.NoError(t, err)
		assert.Equal(t, expected, b)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(memberID).WillReturnError(pgx.ErrNoRows)

		b, err := repo.LockForUpdate(ctx, memberID)
		assert.Error(t, err)
		assert.Nil(t, b)
		var notFound ledger.ErrBalanceNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, memberID, notFound.MemberID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("lock db error")
		mock.ExpectQuery(query).WithArgs(memberID).WillReturnError(dbErr)

		b, err := repo.LockForUpdate(ctx, memberID)
		assert.Error(t, err)
		assert.Nil(t, b)
		assert.Contains(t, err.Error(), "failed to lock member balance")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_Update(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	now := time.Now()
	b := &ledger.Balance{
		MemberID:  uuid.New(),
		Balance:   5000,
		Version:   3,
		UpdatedAt: now,
	}

	query := `
		UPDATE member_balances
		SET balance = \$1, version = \$2, updated_at = \$3
		WHERE member_id = \$4 AND version = \$5
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(b.Balance, b.Version, b.UpdatedAt, b.MemberID, b.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, b)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(b.Balance, b.Version, b.UpdatedAt, b.MemberID, b.Version-1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, b)
		assert.Error(t, err)
		var notFound ledger.ErrBalanceNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("update db error")
		mock.ExpectExec(query).
			WithArgs(b.Balance, b.Version, b.UpdatedAt, b.MemberID, b.Version-1).
			WillReturnError(dbErr)

		err := repo.Update(ctx, b)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update member balance")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_AppendChange(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	rec := &ledger.ChangeRecord{
		MemberID:      uuid.New(),
		Delta:         -5000,
		BalanceBefore: 10000,
		BalanceAfter:  5000,
		Label:         shared.LabelWithdraw,
		Reference:     "W20260831120000123456",
		CreatedAt:     time.Now(),
	}

	query := `
		INSERT INTO balance_change_records \(member_id, delta, balance_before, balance_after, label, reference, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)
		RETURNING id
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(rec.MemberID, rec.Delta, rec.BalanceBefore, rec.BalanceAfter, rec.Label, rec.Reference, rec.CreatedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		err := repo.AppendChange(ctx, rec)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), rec.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		dbErr := errors.New("insert db error")
		mock.ExpectQuery(query).
			WithArgs(rec.MemberID, rec.Delta, rec.BalanceBefore, rec.BalanceAfter, rec.Label, rec.Reference, rec.CreatedAt).
			WillReturnError(dbErr)

		err := repo.AppendChange(ctx, rec)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to append balance change record")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_ListChanges(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	memberID := uuid.New()
	now := time.Now()

	query := `
		SELECT id, member_id, delta, balance_before, balance_after, label, reference, created_at
		FROM balance_change_records
		WHERE member_id = \$1
		ORDER BY created_at DESC, id DESC
		LIMIT \$2 OFFSET \$3
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "member_id", "delta", "balance_before", "balance_after", "label", "reference", "created_at"}).
			AddRow(int64(2), memberID, int64(5000), int64(5000), int64(10000), shared.LabelWithdrawRefund, "W20260831120000123456", now).
			AddRow(int64(1), memberID, int64(-5000), int64(10000), int64(5000), shared.LabelWithdraw, "W20260831120000123456", now.Add(-time.Minute))

		mock.ExpectQuery(query).WithArgs(memberID, 10, 0).WillReturnRows(rows)

		records, err := repo.ListChanges(ctx, memberID, 10, 0)
		assert.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, shared.LabelWithdrawRefund, records[0].Label)
		assert.Equal(t, int64(-5000), records[1].Delta)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("query db error")
		mock.ExpectQuery(query).WithArgs(memberID, 10, 0).WillReturnError(dbErr)

		records, err := repo.ListChanges(ctx, memberID, 10, 0)
		assert.Error(t, err)
		assert.Nil(t, records)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
