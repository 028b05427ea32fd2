package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewardhub/settlement-engine/internal/domain/payout"
	"github.com/rewardhub/settlement-engine/internal/platform/persistence"
)

// PayoutAccountRepository implements the payout.Repository interface for PostgreSQL
type PayoutAccountRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPayoutAccountRepository creates a new PostgreSQL payout account repository
func NewPayoutAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) payout.Repository {
	return &PayoutAccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *PayoutAccountRepository) WithTx(tx pgx.Tx) payout.Repository {
	return &PayoutAccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const payoutColumns = `id, member_id, channel, bank_code, account_no, account_name, created_at`

func scanPayoutAccount(row pgx.Row) (*payout.Account, error) {
	var a payout.Account
	err := row.Scan(
		&a.ID,
		&a.MemberID,
		&a.Channel,
		&a.BankCode,
		&a.AccountNo,
		&a.AccountName,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves a payout account by its ID
func (r *PayoutAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Account, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_accounts WHERE id = $1`

	a, err := scanPayoutAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payout.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get payout account", "account_id", id, "error", err)
		return nil, fmt.Errorf("failed to get payout account: %w", err)
	}

	return a, nil
}

// ListByMember retrieves all payout accounts registered by a member
func (r *PayoutAccountRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]*payout.Account, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_accounts WHERE member_id = $1 ORDER BY created_at DESC`

	rows, err := r.querier.Query(ctx, query, memberID)
	if err != nil {
		r.logger.Error("Failed to list payout accounts", "member_id", memberID, "error", err)
		return nil, fmt.Errorf("failed to list payout accounts: %w", err)
	}
	defer rows.Close()

	var result []*payout.Account
	for rows.Next() {
		a, err := scanPayoutAccount(rows)
		if err != nil {
			r.logger.Error("Failed to scan payout account", "error", err)
			return nil, fmt.Errorf("failed to scan payout account: %w", err)
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over payout accounts", "error", err)
		return nil, fmt.Errorf("error iterating over payout accounts: %w", err)
	}

	return result, nil
}
