package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/platform/persistence"
)

const paymentColumns = `reference, withdrawal_id, member_id, channel, amount, bank_code, account_no, account_name, status, request_payload, response_payload, error_message, requested_at, responded_at, created_at, updated_at`

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment transaction repository
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *PaymentRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &PaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanTransaction(row pgx.Row) (*payment.Transaction, error) {
	var t payment.Transaction
	err := row.Scan(
		&t.Reference,
		&t.WithdrawalID,
		&t.MemberID,
		&t.Channel,
		&t.Amount,
		&t.BankCode,
		&t.AccountNo,
		&t.AccountName,
		&t.Status,
		&t.RequestPayload,
		&t.ResponsePayload,
		&t.ErrorMessage,
		&t.RequestedAt,
		&t.RespondedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create stores a new payment transaction. Runs in the same transaction that
// moves the withdrawal to PROCESSING.
func (r *PaymentRepository) Create(ctx context.Context, t *payment.Transaction) error {
	query := `
		INSERT INTO payment_transactions (reference, withdrawal_id, member_id, channel, amount, bank_code, account_no, account_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		t.Reference,
		t.WithdrawalID,
		t.MemberID,
		t.Channel,
		t.Amount,
		t.BankCode,
		t.AccountNo,
		t.AccountName,
		t.Status,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment transaction", "reference", t.Reference, "error", err)
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}

	return nil
}

// GetByReference retrieves a payment transaction by its order reference
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*payment.Transaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE reference = $1`

	t, err := scanTransaction(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get payment transaction", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}

	return t, nil
}

// LockByReference obtains a pessimistic lock on the transaction row. The
// transaction lock is always acquired first, before withdrawal and bill.
func (r *PaymentRepository) LockByReference(ctx context.Context, reference string) (*payment.Transaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE reference = $1 FOR UPDATE`

	t, err := scanTransaction(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{Reference: reference}
		}
		r.logger.Error("Failed to lock payment transaction", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to lock payment transaction: %w", err)
	}

	return t, nil
}

// ListUnresolved returns transactions the reconciler must act on: pending
// rows plus terminal rows whose withdrawal is still PROCESSING (left behind
// by a crash between persisting the verdict and finalizing the withdrawal).
func (r *PaymentRepository) ListUnresolved(ctx context.Context, limit int) ([]*payment.Transaction, error) {
	query := `
		SELECT pt.reference, pt.withdrawal_id, pt.member_id, pt.channel, pt.amount, pt.bank_code, pt.account_no, pt.account_name, pt.status, pt.request_payload, pt.response_payload, pt.error_message, pt.requested_at, pt.responded_at, pt.created_at, pt.updated_at
		FROM payment_transactions pt
		JOIN withdrawals w ON w.reference = pt.reference
		WHERE pt.status = $1 OR w.status = $2
		ORDER BY pt.created_at ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, shared.PaymentStatusPending, shared.WithdrawalStatusProcessing, limit)
	if err != nil {
		r.logger.Error("Failed to list unresolved payment transactions", "error", err)
		return nil, fmt.Errorf("failed to list unresolved payment transactions: %w", err)
	}
	defer rows.Close()

	var result []*payment.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan payment transaction", "error", err)
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over payment transactions", "error", err)
		return nil, fmt.Errorf("error iterating over payment transactions: %w", err)
	}

	return result, nil
}

// SetRequestPayload snapshots the outbound request before the provider call
func (r *PaymentRepository) SetRequestPayload(ctx context.Context, reference string, payload string, requestedAt time.Time) error {
	query := `
		UPDATE payment_transactions
		SET request_payload = $1, requested_at = $2, updated_at = NOW()
		WHERE reference = $3
	`

	result, err := r.querier.Exec(ctx, query, payload, requestedAt, reference)
	if err != nil {
		r.logger.Error("Failed to set request payload", "reference", reference, "error", err)
		return fmt.Errorf("failed to set request payload: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrTransactionNotFound{Reference: reference}
	}

	return nil
}

// RecordResponse stores a provider acknowledgement; the transaction stays
// PENDING because acceptance is not settlement.
func (r *PaymentRepository) RecordResponse(ctx context.Context, reference string, response string) error {
	query := `
		UPDATE payment_transactions
		SET response_payload = $1, responded_at = NOW(), updated_at = NOW()
		WHERE reference = $2 AND status = $3
	`

	result, err := r.querier.Exec(ctx, query, response, reference, shared.PaymentStatusPending)
	if err != nil {
		r.logger.Error("Failed to record provider response", "reference", reference, "error", err)
		return fmt.Errorf("failed to record provider response: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrTransactionNotFound{Reference: reference}
	}

	return nil
}

// MarkSuccess finalizes the transaction as SUCCESS. Only a PENDING row is
// touched: terminal states never flip, so racing resolvers with conflicting
// answers cannot rewrite each other. Safe to repeat; the replay is 0 rows.
func (r *PaymentRepository) MarkSuccess(ctx context.Context, reference string, response string) error {
	query := `
		UPDATE payment_transactions
		SET status = $1, response_payload = COALESCE(NULLIF($2, ''), response_payload), responded_at = NOW(), updated_at = NOW()
		WHERE reference = $3 AND status = $4
	`

	_, err := r.querier.Exec(ctx, query,
		shared.PaymentStatusSuccess,
		response,
		reference,
		shared.PaymentStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to mark payment transaction success", "reference", reference, "error", err)
		return fmt.Errorf("failed to mark payment transaction success: %w", err)
	}

	return nil
}

// MarkFailed finalizes the transaction as FAILED with the provider error.
// Like MarkSuccess, only a PENDING row transitions.
func (r *PaymentRepository) MarkFailed(ctx context.Context, reference string, errorMessage string, response string) error {
	query := `
		UPDATE payment_transactions
		SET status = $1, error_message = $2, response_payload = COALESCE(NULLIF($3, ''), response_payload), responded_at = NOW(), updated_at = NOW()
		WHERE reference = $4 AND status = $5
	`

	_, err := r.querier.Exec(ctx, query,
		shared.PaymentStatusFailed,
		errorMessage,
		response,
		reference,
		shared.PaymentStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to mark payment transaction failed", "reference", reference, "error", err)
		return fmt.Errorf("failed to mark payment transaction failed: %w", err)
	}

	return nil
}

func paymentFilterClauses(f payment.Filters) (string, []interface{}) {
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

// List retrieves filtered, paginated payment transactions, newest first
func (r *PaymentRepository) List(ctx context.Context, f payment.Filters, limit, offset int) ([]*payment.Transaction, error) {
	clause, args := paymentFilterClauses(f)
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM payment_transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		paymentColumns, clause, len(args)-1, len(args),
	)

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list payment transactions", "error", err)
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	defer rows.Close()

	var result []*payment.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan payment transaction", "error", err)
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over payment transactions", "error", err)
		return nil, fmt.Errorf("error iterating over payment transactions: %w", err)
	}

	return result, nil
}

// Count returns the number of payment transactions matching the filters
func (r *PaymentRepository) Count(ctx context.Context, f payment.Filters) (int64, error) {
	clause, args := paymentFilterClauses(f)
	query := `SELECT COUNT(*) FROM payment_transactions` + clause

	var count int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count payment transactions", "error", err)
		return 0, fmt.Errorf("failed to count payment transactions: %w", err)
	}

	return count, nil
}
