package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/platform/persistence"
)

const billColumns = `reference, member_id, type, amount, settlement_status, withdrawal_status, task_ref, withdrawal_ref, related_member_id, related_group_id, operator_id, failure_reason, remark, created_at, updated_at`

// BillRepository implements the bill.Repository interface for PostgreSQL
type BillRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBillRepository creates a new PostgreSQL bill repository
func NewBillRepository(logger *slog.Logger, db *persistence.PostgresDB) bill.Repository {
	return &BillRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *BillRepository) WithTx(tx pgx.Tx) bill.Repository {
	return &BillRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanBill(row pgx.Row) (*bill.Bill, error) {
	var b bill.Bill
	err := row.Scan(
		&b.Reference,
		&b.MemberID,
		&b.Type,
		&b.Amount,
		&b.SettlementStatus,
		&b.WithdrawalStatus,
		&b.TaskRef,
		&b.WithdrawalRef,
		&b.RelatedMemberID,
		&b.RelatedGroupID,
		&b.OperatorID,
		&b.FailureReason,
		&b.Remark,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create stores a new bill
func (r *BillRepository) Create(ctx context.Context, b *bill.Bill) error {
	query := `
		INSERT INTO bills (reference, member_id, type, amount, settlement_status, withdrawal_status, task_ref, withdrawal_ref, related_member_id, related_group_id, operator_id, failure_reason, remark, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		b.Reference,
		b.MemberID,
		b.Type,
		b.Amount,
		b.SettlementStatus,
		b.WithdrawalStatus,
		b.TaskRef,
		b.WithdrawalRef,
		b.RelatedMemberID,
		b.RelatedGroupID,
		b.OperatorID,
		b.FailureReason,
		b.Remark,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create bill", "reference", b.Reference, "error", err)
		return fmt.Errorf("failed to create bill: %w", err)
	}

	return nil
}

// GetByReference retrieves a bill by its reference
func (r *BillRepository) GetByReference(ctx context.Context, reference string) (*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE reference = $1`

	b, err := scanBill(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bill.ErrBillNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get bill", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	return b, nil
}

// LockByReference obtains a pessimistic lock on the bill row. Must be used
// within a transaction; the bill lock is always acquired last.
func (r *BillRepository) LockByReference(ctx context.Context, reference string) (*bill.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE reference = $1 FOR UPDATE`

	b, err := scanBill(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bill.ErrBillNotFound{Reference: reference}
		}
		r.logger.Error("Failed to lock bill", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to lock bill: %w", err)
	}

	return b, nil
}

// SetProcessing moves a pending withdrawal bill to PROCESSING
func (r *BillRepository) SetProcessing(ctx context.Context, reference string, operatorID uuid.UUID) error {
	query := `
		UPDATE bills
		SET withdrawal_status = $1, operator_id = $2, updated_at = NOW()
		WHERE reference = $3 AND withdrawal_status = $4
	`

	result, err := r.querier.Exec(ctx, query,
		shared.WithdrawalStatusProcessing,
		operatorID,
		reference,
		shared.WithdrawalStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to set bill processing", "reference", reference, "error", err)
		return fmt.Errorf("failed to set bill processing: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bill.ErrBillNotFound{Reference: reference}
	}

	return nil
}

// MarkFailed sets both status fields to FAILED with the reason. Bills whose
// fields are both already FAILED are left alone.
func (r *BillRepository) MarkFailed(ctx context.Context, reference string, reason string) error {
	query := `
		UPDATE bills
		SET withdrawal_status = $1, settlement_status = $2, failure_reason = $3, updated_at = NOW()
		WHERE reference = $4 AND NOT (withdrawal_status = $1 AND settlement_status = $2)
	`

	result, err := r.querier.Exec(ctx, query,
		shared.WithdrawalStatusFailed,
		shared.SettlementStatusFailed,
		reason,
		reference,
	)
	if err != nil {
		r.logger.Error("Failed to mark bill failed", "reference", reference, "error", err)
		return fmt.Errorf("failed to mark bill failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bill.ErrBillNotFound{Reference: reference}
	}

	return nil
}

// MarkSuccess sets both status fields to SUCCESS
func (r *BillRepository) MarkSuccess(ctx context.Context, reference string) error {
	query := `
		UPDATE bills
		SET withdrawal_status = $1, settlement_status = $2, updated_at = NOW()
		WHERE reference = $3 AND NOT (withdrawal_status = $1 AND settlement_status = $2)
	`

	result, err := r.querier.Exec(ctx, query,
		shared.WithdrawalStatusSuccess,
		shared.SettlementStatusSuccess,
		reference,
	)
	if err != nil {
		r.logger.Error("Failed to mark bill success", "reference", reference, "error", err)
		return fmt.Errorf("failed to mark bill success: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bill.ErrBillNotFound{Reference: reference}
	}

	return nil
}
