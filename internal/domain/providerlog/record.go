package providerlog

import (
	"context"
	"time"
)

// Call kinds
const (
	KindDisburse = "DISBURSE"
	KindQuery    = "QUERY"
)

// Record is one raw request/response exchange with the payment provider.
// Records are appended best-effort outside database transactions; they are a
// debugging archive, not the system of record.
type Record struct {
	Reference string    `json:"reference" bson:"reference"`
	Kind      string    `json:"kind" bson:"kind"`
	Request   string    `json:"request,omitempty" bson:"request,omitempty"`
	Response  string    `json:"response,omitempty" bson:"response,omitempty"`
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Repository stores provider call records
type Repository interface {
	Append(ctx context.Context, record *Record) error
	ListByReference(ctx context.Context, reference string, limit, offset int) ([]*Record, error)
}
