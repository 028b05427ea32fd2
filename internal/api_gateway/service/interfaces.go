package service

import (
	"context"

	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/providerlog"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
)

// QueryService defines the read side of the API: withdrawal and payment
// transaction listings for the admin UI plus single-row lookups by
// reference. All mutations go through the settlement services instead.
type QueryService interface {
	// ListWithdrawals retrieves a filtered, paginated withdrawal listing
	// Returns rows, total count matching the filters, and any error
	ListWithdrawals(ctx context.Context, f withdrawal.Filters, page, perPage int) ([]*withdrawal.Withdrawal, int64, error)

	// GetWithdrawal retrieves a withdrawal and its bill by reference.
	// Returns a nil withdrawal if the reference is unknown.
	GetWithdrawal(ctx context.Context, reference string) (*withdrawal.Withdrawal, *bill.Bill, error)

	// ListTransactions retrieves a filtered, paginated payment transaction listing
	ListTransactions(ctx context.Context, f payment.Filters, page, perPage int) ([]*payment.Transaction, int64, error)

	// GetTransaction retrieves a payment transaction by reference together
	// with its archived provider exchanges. Returns a nil transaction if
	// the reference is unknown.
	GetTransaction(ctx context.Context, reference string) (*payment.Transaction, []*providerlog.Record, error)
}
