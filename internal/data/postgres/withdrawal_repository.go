package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
	"github.com/rewardhub/settlement-engine/internal/platform/persistence"
)

const withdrawalColumns = `id, reference, member_id, payout_account_id, amount, status, operator_id, reject_reason, remark, processed_at, created_at, updated_at`

// WithdrawalRepository implements the withdrawal.Repository interface for PostgreSQL
type WithdrawalRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWithdrawalRepository creates a new PostgreSQL withdrawal repository
func NewWithdrawalRepository(logger *slog.Logger, db *persistence.PostgresDB) withdrawal.Repository {
	return &WithdrawalRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *WithdrawalRepository) WithTx(tx pgx.Tx) withdrawal.Repository {
	return &WithdrawalRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanWithdrawal(row pgx.Row) (*withdrawal.Withdrawal, error) {
	var w withdrawal.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.Reference,
		&w.MemberID,
		&w.PayoutAccountID,
		&w.Amount,
		&w.Status,
		&w.OperatorID,
		&w.RejectReason,
		&w.Remark,
		&w.ProcessedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create stores a new withdrawal. Must run in the same transaction as the
// ledger debit and the bill insert.
func (r *WithdrawalRepository) Create(ctx context.Context, w *withdrawal.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (id, reference, member_id, payout_account_id, amount, status, remark, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.Reference,
		w.MemberID,
		w.PayoutAccountID,
		w.Amount,
		w.Status,
		w.Remark,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create withdrawal", "reference", w.Reference, "error", err)
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}

	return nil
}

// GetByID retrieves a withdrawal by its ID
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, withdrawal.ErrWithdrawalNotFound{Reference: id.String()}
		}
		r.logger.Error("Failed to get withdrawal", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}

	return w, nil
}

// GetByReference retrieves a withdrawal by its shared reference
func (r *WithdrawalRepository) GetByReference(ctx context.Context, reference string) (*withdrawal.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE reference = $1`

	w, err := scanWithdrawal(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, withdrawal.ErrWithdrawalNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get withdrawal by reference", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get withdrawal by reference: %w", err)
	}

	return w, nil
}

// LockByReference obtains a pessimistic lock on the withdrawal row.
// Must be used within a transaction, after the payment transaction lock and
// before the bill lock.
func (r *WithdrawalRepository) LockByReference(ctx context.Context, reference string) (*withdrawal.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE reference = $1 FOR UPDATE`

	w, err := scanWithdrawal(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, withdrawal.ErrWithdrawalNotFound{Reference: reference}
		}
		r.logger.Error("Failed to lock withdrawal", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to lock withdrawal: %w", err)
	}

	return w, nil
}

// LockPendingByIDs locks and returns exactly the subset of ids still PENDING.
// Rows already claimed by a concurrent admin batch simply drop out of the
// result; the ORDER BY keeps two overlapping batches acquiring locks in the
// same order.
func (r *WithdrawalRepository) LockPendingByIDs(ctx context.Context, ids []uuid.UUID) ([]*withdrawal.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE id = ANY($1) AND status = $2
		ORDER BY id
		FOR UPDATE
	`

	rows, err := r.querier.Query(ctx, query, ids, shared.WithdrawalStatusPending)
	if err != nil {
		r.logger.Error("Failed to lock pending withdrawals", "count", len(ids), "error", err)
		return nil, fmt.Errorf("failed to lock pending withdrawals: %w", err)
	}
	defer rows.Close()

	var result []*withdrawal.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			r.logger.Error("Failed to scan locked withdrawal", "error", err)
			return nil, fmt.Errorf("failed to scan locked withdrawal: %w", err)
		}
		result = append(result, w)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over locked withdrawals", "error", err)
		return nil, fmt.Errorf("error iterating over locked withdrawals: %w", err)
	}

	return result, nil
}

// HasNonTerminalByMember reports whether the member has a withdrawal still in
// flight. Callers serialize on the member's balance row lock.
func (r *WithdrawalRepository) HasNonTerminalByMember(ctx context.Context, memberID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM withdrawals
			WHERE member_id = $1 AND status IN ($2, $3)
		)
	`

	var exists bool
	err := r.querier.QueryRow(ctx, query, memberID, shared.WithdrawalStatusPending, shared.WithdrawalStatusProcessing).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check for in-flight withdrawal", "member_id", memberID.String(), "error", err)
		return false, fmt.Errorf("failed to check for in-flight withdrawal: %w", err)
	}

	return exists, nil
}

// SetProcessing moves a pending withdrawal to PROCESSING under an operator.
// The status guard makes the transition a no-op if the row moved concurrently.
func (r *WithdrawalRepository) SetProcessing(ctx context.Context, id uuid.UUID, operatorID uuid.UUID, remark string) error {
	query := `
		UPDATE withdrawals
		SET status = $1, operator_id = $2, remark = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query,
		shared.WithdrawalStatusProcessing,
		operatorID,
		remark,
		id,
		shared.WithdrawalStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to set withdrawal processing", "id", id.String(), "error", err)
		return fmt.Errorf("failed to set withdrawal processing: %w", err)
	}

	if result.RowsAffected() == 0 {
		return withdrawal.ErrWithdrawalNotFound{Reference: id.String()}
	}

	return nil
}

// MarkFailed finalizes the withdrawal as FAILED. Terminal rows are not
// touched.
func (r *WithdrawalRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, processedAt time.Time) error {
	query := `
		UPDATE withdrawals
		SET status = $1, reject_reason = $2, processed_at = $3, updated_at = NOW()
		WHERE id = $4 AND status NOT IN ($5, $6)
	`

	result, err := r.querier.Exec(ctx, query,
		shared.WithdrawalStatusFailed,
		reason,
		processedAt,
		id,
		shared.WithdrawalStatusSuccess,
		shared.WithdrawalStatusFailed,
	)
	if err != nil {
		r.logger.Error("Failed to mark withdrawal failed", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark withdrawal failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return withdrawal.ErrWithdrawalAlreadyTerminal
	}

	return nil
}

// MarkSuccess finalizes the withdrawal as SUCCESS. Terminal rows are not
// touched.
func (r *WithdrawalRepository) MarkSuccess(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	query := `
		UPDATE withdrawals
		SET status = $1, processed_at = $2, updated_at = NOW()
		WHERE id = $3 AND status NOT IN ($4, $5)
	`

	result, err := r.querier.Exec(ctx, query,
		shared.WithdrawalStatusSuccess,
		processedAt,
		id,
		shared.WithdrawalStatusSuccess,
		shared.WithdrawalStatusFailed,
	)
	if err != nil {
		r.logger.Error("Failed to mark withdrawal success", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark withdrawal success: %w", err)
	}

	if result.RowsAffected() == 0 {
		return withdrawal.ErrWithdrawalAlreadyTerminal
	}

	return nil
}

func withdrawalFilterClauses(f withdrawal.Filters) (string, []interface{}) {
	clause := " WHERE 1=1"
	var args []interface{}

	if f.MemberID != nil {
		args = append(args, *f.MemberID)
		clause += fmt.Sprintf(" AND member_id = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		clause += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Reference != "" {
		args = append(args, f.Reference)
		clause += fmt.Sprintf(" AND reference = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		clause += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		clause += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	return clause, args
}

// List retrieves filtered, paginated withdrawals, newest first
func (r *WithdrawalRepository) List(ctx context.Context, f withdrawal.Filters, limit, offset int) ([]*withdrawal.Withdrawal, error) {
	clause, args := withdrawalFilterClauses(f)
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM withdrawals%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		withdrawalColumns, clause, len(args)-1, len(args),
	)

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list withdrawals", "error", err)
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var result []*withdrawal.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			r.logger.Error("Failed to scan withdrawal", "error", err)
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		result = append(result, w)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over withdrawals", "error", err)
		return nil, fmt.Errorf("error iterating over withdrawals: %w", err)
	}

	return result, nil
}

// Count returns the number of withdrawals matching the filters
func (r *WithdrawalRepository) Count(ctx context.Context, f withdrawal.Filters) (int64, error) {
	clause, args := withdrawalFilterClauses(f)
	query := `SELECT COUNT(*) FROM withdrawals` + clause

	var count int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count withdrawals", "error", err)
		return 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	return count, nil
}
