// Package provider implements the outbound client for the external
// disbursement provider: signed form POSTs for payout dispatch and status
// queries, with the channel secret held encrypted at rest.
package provider

import (
	"context"
	"errors"
)

// Status is the provider's view of one payout order
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// ErrRejected indicates the provider refused to accept a disbursement order
var ErrRejected = errors.New("provider rejected disbursement order")

// DisburseRequest carries one payout order to the provider. OrderNo is the
// withdrawal reference; Amount is in minor units and converted to the
// provider's decimal format on the wire.
type DisburseRequest struct {
	OrderNo     string
	BankCode    string
	AccountNo   string
	AccountName string
	Amount      int64
}

// DisburseResult is the provider's acknowledgement of an order. Accepted
// means the order was queued, not settled; settlement is resolved later via
// QueryStatus.
type DisburseResult struct {
	Accepted    bool
	ProviderRef string
	Message     string
	RawRequest  string // Signed form body as sent, for the call archive
	RawResponse string
}

// QueryResult is the provider's answer to a status query. Unknown status
// codes map to StatusPending so the order is retried next cycle instead of
// being guessed terminal.
type QueryResult struct {
	Status      Status
	Message     string
	RawResponse string
}

// Client talks to the disbursement provider
type Client interface {
	Disburse(ctx context.Context, req *DisburseRequest) (*DisburseResult, error)
	QueryStatus(ctx context.Context, orderNo string) (*QueryResult, error)
}
