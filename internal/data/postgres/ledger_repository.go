// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the settlement engine.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/ledger"
	"github.com/rewardhub/settlement-engine/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL
type LedgerRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so a balance mutation and
// its sibling writes commit or roll back together.
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new member balance row
func (r *LedgerRepository) Create(ctx context.Context, b *ledger.Balance) error {
	query := `
		INSERT INTO member_balances (member_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query,
		b.MemberID,
		b.Balance,
		b.Version,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create member balance", "member_id", b.MemberID.String(), "error", err)
		return fmt.Errorf("failed to create member balance: %w", err)
	}

	return nil
}

// GetByMemberID retrieves a member's balance without locking
func (r *LedgerRepository) GetByMemberID(ctx context.Context, memberID uuid.UUID) (*ledger.Balance, error) {
	query := `
		SELECT member_id, balance, version, created_at, updated_at
		FROM member_balances
		WHERE member_id = $1
	`

	var b ledger.Balance
	err := r.querier.QueryRow(ctx, query, memberID).Scan(
		&b.MemberID,
		&b.Balance,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrBalanceNotFound{MemberID: memberID}
		}
		r.logger.Error("Failed to get member balance", "member_id", memberID.String(), "error", err)
		return nil, fmt.Errorf("failed to get member balance: %w", err)
	}

	return &b, nil
}

// LockForUpdate obtains a pessimistic lock on the member's balance row and
// returns its current state. Must be used within a transaction.
func (r *LedgerRepository) LockForUpdate(ctx context.Context, memberID uuid.UUID) (*ledger.Balance, error) {
	query := `
		SELECT member_id, balance, version, created_at, updated_at
		FROM member_balances
		WHERE member_id = $1
		FOR UPDATE
	`

	var b ledger.Balance
	err := r.querier.QueryRow(ctx, query, memberID).Scan(
		&b.MemberID,
		&b.Balance,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrBalanceNotFound{MemberID: memberID}
		}
		r.logger.Error("Failed to lock member balance", "member_id", memberID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock member balance: %w", err)
	}

	return &b, nil
}

// Update persists a balance mutated in memory. The version check guards
// against lost updates on paths that skipped the row lock.
func (r *LedgerRepository) Update(ctx context.Context, b *ledger.Balance) error {
	query := `
		UPDATE member_balances
		SET balance = $1, version = $2, updated_at = $3
		WHERE member_id = $4 AND version = $5
	`

	result, err := r.querier.Exec(ctx, query,
		b.Balance,
		b.Version,
		b.UpdatedAt,
		b.MemberID,
		b.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update member balance", "member_id", b.MemberID.String(), "error", err)
		return fmt.Errorf("failed to update member balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ledger.ErrBalanceNotFound{MemberID: b.MemberID}
	}

	return nil
}

// AppendChange inserts one immutable balance change record. There is no
// update or delete path for these rows.
func (r *LedgerRepository) AppendChange(ctx context.Context, rec *ledger.ChangeRecord) error {
	query := `
		INSERT INTO balance_change_records (member_id, delta, balance_before, balance_after, label, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		rec.MemberID,
		rec.Delta,
		rec.BalanceBefore,
		rec.BalanceAfter,
		rec.Label,
		rec.Reference,
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		r.logger.Error("Failed to append balance change record",
			"member_id", rec.MemberID.String(),
			"reference", rec.Reference,
			"error", err,
		)
		return fmt.Errorf("failed to append balance change record: %w", err)
	}

	return nil
}

// ListChanges retrieves paginated change records for a member, newest first
func (r *LedgerRepository) ListChanges(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*ledger.ChangeRecord, error) {
	query := `
		SELECT id, member_id, delta, balance_before, balance_after, label, reference, created_at
		FROM balance_change_records
		WHERE member_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, memberID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list balance change records", "member_id", memberID.String(), "error", err)
		return nil, fmt.Errorf("failed to list balance change records: %w", err)
	}
	defer rows.Close()

	var records []*ledger.ChangeRecord
	for rows.Next() {
		var rec ledger.ChangeRecord
		err := rows.Scan(
			&rec.ID,
			&rec.MemberID,
			&rec.Delta,
			&rec.BalanceBefore,
			&rec.BalanceAfter,
			&rec.Label,
			&rec.Reference,
			&rec.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan balance change record", "error", err)
			return nil, fmt.Errorf("failed to scan balance change record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over balance change records", "error", err)
		return nil, fmt.Errorf("error iterating over balance change records: %w", err)
	}

	return records, nil
}
