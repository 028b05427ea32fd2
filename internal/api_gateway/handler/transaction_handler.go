package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rewardhub/settlement-engine/internal/api_gateway/service"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
)

// TransactionHandler handles HTTP requests for payment transaction lookups
type TransactionHandler struct {
	queries service.QueryService
	logger  *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, queries service.QueryService) *TransactionHandler {
	return &TransactionHandler{
		queries: queries,
		logger:  logger,
	}
}

// List retrieves a filtered, paginated payment transaction listing
func (h *TransactionHandler) List(c *gin.Context) {
	filters, pagination, ok := bindListParams(c, h.logger)
	if !ok {
		return
	}

	f := payment.Filters{
		MemberID:  filters.memberID,
		Reference: filters.reference,
		From:      filters.from,
		To:        filters.to,
	}
	if filters.status != "" {
		status := shared.PaymentStatus(filters.status)
		f.Status = &status
	}

	rows, total, err := h.queries.ListTransactions(c.Request.Context(), f, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list payment transactions", "error", err)
		RespondInternalError(c)
		return
	}

	transactions := make([]TransactionResponse, 0, len(rows))
	for _, txn := range rows {
		transactions = append(transactions, mapTransactionToResponse(txn))
	}

	RespondWithPaginatedData(c, http.StatusOK, transactions, pagination.Page, pagination.PerPage, int(total))
}

// GetByReference retrieves a payment transaction with its provider call
// history, returns 404 if not found
func (h *TransactionHandler) GetByReference(c *gin.Context) {
	reference := c.Param("reference")

	txn, calls, err := h.queries.GetTransaction(c.Request.Context(), reference)
	if err != nil {
		h.logger.Error("Failed to get payment transaction", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}
	if txn == nil {
		RespondNotFound(c, "Payment transaction not found")
		return
	}

	detail := TransactionDetailResponse{
		Transaction:   mapTransactionToResponse(txn),
		ProviderCalls: make([]ProviderCallResponse, 0, len(calls)),
	}
	for _, call := range calls {
		detail.ProviderCalls = append(detail.ProviderCalls, mapProviderCallToResponse(call))
	}

	RespondOK(c, detail)
}
