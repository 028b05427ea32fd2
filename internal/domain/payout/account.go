package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Account is a member's registered payout destination. The settlement engine
// only reads these; registration and verification belong to the CRUD layer.
type Account struct {
	ID          uuid.UUID `json:"id"`
	MemberID    uuid.UUID `json:"member_id"`
	Channel     string    `json:"channel"`
	BankCode    string    `json:"bank_code"`
	AccountNo   string    `json:"account_no"`
	AccountName string    `json:"account_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository provides read access to payout accounts
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]*Account, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates a missing payout account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "payout account not found: " + e.AccountID.String()
}
