package handler

import (
	"time"

	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/providerlog"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
)

// CreateWithdrawalRequest represents a member's request to withdraw balance
type CreateWithdrawalRequest struct {
	MemberID        string `json:"member_id" binding:"required,uuid"`
	PayoutAccountID string `json:"payout_account_id" binding:"required,uuid"`
	Amount          int64  `json:"amount" binding:"required,gt=0"` // Minor units
}

// WithdrawalResponse represents a withdrawal in API responses
type WithdrawalResponse struct {
	ID              string `json:"id"`
	Reference       string `json:"reference"`
	MemberID        string `json:"member_id"`
	PayoutAccountID string `json:"payout_account_id"`
	Amount          int64  `json:"amount"`
	Status          string `json:"status"`
	OperatorID      string `json:"operator_id,omitempty"`
	RejectReason    string `json:"reject_reason,omitempty"`
	Remark          string `json:"remark,omitempty"`
	ProcessedAt     string `json:"processed_at,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// BillResponse represents the ledger bill attached to a withdrawal
type BillResponse struct {
	Reference        string `json:"reference"`
	Type             string `json:"type"`
	Amount           int64  `json:"amount"`
	SettlementStatus string `json:"settlement_status"`
	WithdrawalStatus string `json:"withdrawal_status"`
	FailureReason    string `json:"failure_reason,omitempty"`
	Remark           string `json:"remark,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// WithdrawalDetailResponse pairs a withdrawal with its bill
type WithdrawalDetailResponse struct {
	Withdrawal WithdrawalResponse `json:"withdrawal"`
	Bill       *BillResponse      `json:"bill,omitempty"`
}

// BatchApproveRequest represents an admin batch approval
type BatchApproveRequest struct {
	IDs        []string `json:"ids" binding:"required,min=1,dive,uuid"`
	OperatorID string   `json:"operator_id" binding:"required,uuid"`
	Remark     string   `json:"remark,omitempty"`
}

// BatchRejectRequest represents an admin batch rejection
type BatchRejectRequest struct {
	IDs        []string `json:"ids" binding:"required,min=1,dive,uuid"`
	OperatorID string   `json:"operator_id" binding:"required,uuid"`
	Reason     string   `json:"reason,omitempty"`
	Remark     string   `json:"remark,omitempty"`
}

// BatchResponse reports the per-id outcome of a batch approve or reject
type BatchResponse struct {
	Processed []string `json:"processed"`
	Skipped   []string `json:"skipped"`
}

// TransactionResponse represents a payment transaction in API responses
type TransactionResponse struct {
	Reference    string `json:"reference"`
	WithdrawalID string `json:"withdrawal_id"`
	MemberID     string `json:"member_id"`
	Channel      string `json:"channel"`
	Amount       int64  `json:"amount"`
	BankCode     string `json:"bank_code"`
	AccountNo    string `json:"account_no"`
	AccountName  string `json:"account_name"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	RequestedAt  string `json:"requested_at,omitempty"`
	RespondedAt  string `json:"responded_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// ProviderCallResponse represents one archived provider exchange
type ProviderCallResponse struct {
	Kind      string `json:"kind"`
	Request   string `json:"request,omitempty"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TransactionDetailResponse pairs a transaction with its provider history
type TransactionDetailResponse struct {
	Transaction   TransactionResponse    `json:"transaction"`
	ProviderCalls []ProviderCallResponse `json:"provider_calls"`
}

// ListFilterParams represents the shared query filters of list endpoints
type ListFilterParams struct {
	MemberID  string `form:"member_id" binding:"omitempty,uuid"`
	Status    string `form:"status"`
	Reference string `form:"reference"`
	From      string `form:"from" binding:"omitempty"` // RFC 3339
	To        string `form:"to" binding:"omitempty"`   // RFC 3339
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

func mapWithdrawalToResponse(w *withdrawal.Withdrawal) WithdrawalResponse {
	response := WithdrawalResponse{
		ID:              w.ID.String(),
		Reference:       w.Reference,
		MemberID:        w.MemberID.String(),
		PayoutAccountID: w.PayoutAccountID.String(),
		Amount:          w.Amount,
		Status:          string(w.Status),
		RejectReason:    w.RejectReason,
		Remark:          w.Remark,
		CreatedAt:       w.CreatedAt.Format(time.RFC3339),
	}

	if w.OperatorID != nil {
		response.OperatorID = w.OperatorID.String()
	}
	if w.ProcessedAt != nil {
		response.ProcessedAt = w.ProcessedAt.Format(time.RFC3339)
	}

	return response
}

func mapBillToResponse(b *bill.Bill) *BillResponse {
	if b == nil {
		return nil
	}
	return &BillResponse{
		Reference:        b.Reference,
		Type:             string(b.Type),
		Amount:           b.Amount,
		SettlementStatus: string(b.SettlementStatus),
		WithdrawalStatus: string(b.WithdrawalStatus),
		FailureReason:    b.FailureReason,
		Remark:           b.Remark,
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}

func mapTransactionToResponse(t *payment.Transaction) TransactionResponse {
	response := TransactionResponse{
		Reference:    t.Reference,
		WithdrawalID: t.WithdrawalID.String(),
		MemberID:     t.MemberID.String(),
		Channel:      t.Channel,
		Amount:       t.Amount,
		BankCode:     t.BankCode,
		AccountNo:    t.AccountNo,
		AccountName:  t.AccountName,
		Status:       string(t.Status),
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}

	if t.RequestedAt != nil {
		response.RequestedAt = t.RequestedAt.Format(time.RFC3339)
	}
	if t.RespondedAt != nil {
		response.RespondedAt = t.RespondedAt.Format(time.RFC3339)
	}

	return response
}

func mapProviderCallToResponse(r *providerlog.Record) ProviderCallResponse {
	return ProviderCallResponse{
		Kind:      r.Kind,
		Request:   r.Request,
		Response:  r.Response,
		Error:     r.Error,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}
