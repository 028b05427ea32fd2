package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rewardhub/settlement-engine/internal/api_gateway/service"
	"github.com/rewardhub/settlement-engine/internal/domain/ledger"
	"github.com/rewardhub/settlement-engine/internal/domain/payout"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
	"github.com/rewardhub/settlement-engine/internal/settlement"
)

// WithdrawalHandler handles HTTP requests for withdrawal operations
type WithdrawalHandler struct {
	intake  settlement.IntakeService
	admin   settlement.AdminService
	queries service.QueryService
	logger  *slog.Logger
}

// NewWithdrawalHandler creates a new withdrawal handler
func NewWithdrawalHandler(
	logger *slog.Logger,
	intake settlement.IntakeService,
	admin settlement.AdminService,
	queries service.QueryService,
) *WithdrawalHandler {
	return &WithdrawalHandler{
		intake:  intake,
		admin:   admin,
		queries: queries,
		logger:  logger,
	}
}

// Create submits a new withdrawal request for a member
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		RespondBadRequest(c, "Invalid member ID")
		return
	}
	payoutAccountID, err := uuid.Parse(req.PayoutAccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid payout account ID")
		return
	}

	w, err := h.intake.Submit(c.Request.Context(), memberID, payoutAccountID, req.Amount)
	if err != nil {
		h.respondIntakeError(c, err)
		return
	}

	RespondCreated(c, mapWithdrawalToResponse(w))
}

func (h *WithdrawalHandler) respondIntakeError(c *gin.Context, err error) {
	var accountNotFound payout.ErrAccountNotFound

	switch {
	case errors.Is(err, withdrawal.ErrInvalidAmount):
		RespondBadRequest(c, "Withdrawal amount must be positive")
	case errors.As(err, &accountNotFound), errors.Is(err, withdrawal.ErrUnknownAccount):
		RespondNotFound(c, "Payout account not found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		RespondUnprocessable(c, "INSUFFICIENT_BALANCE", "Member balance is insufficient")
	case errors.Is(err, withdrawal.ErrPendingWithdrawalExists):
		RespondUnprocessable(c, "WITHDRAWAL_IN_FLIGHT", "Member already has a withdrawal in flight")
	default:
		h.logger.Error("Failed to create withdrawal", "error", err)
		RespondInternalError(c)
	}
}

// List retrieves a filtered, paginated withdrawal listing
func (h *WithdrawalHandler) List(c *gin.Context) {
	filters, pagination, ok := bindListParams(c, h.logger)
	if !ok {
		return
	}

	f := withdrawal.Filters{
		MemberID:  filters.memberID,
		Reference: filters.reference,
		From:      filters.from,
		To:        filters.to,
	}
	if filters.status != "" {
		status := shared.WithdrawalStatus(filters.status)
		f.Status = &status
	}

	rows, total, err := h.queries.ListWithdrawals(c.Request.Context(), f, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list withdrawals", "error", err)
		RespondInternalError(c)
		return
	}

	withdrawals := make([]WithdrawalResponse, 0, len(rows))
	for _, w := range rows {
		withdrawals = append(withdrawals, mapWithdrawalToResponse(w))
	}

	RespondWithPaginatedData(c, http.StatusOK, withdrawals, pagination.Page, pagination.PerPage, int(total))
}

// GetByReference retrieves withdrawal details, returns 404 if not found
func (h *WithdrawalHandler) GetByReference(c *gin.Context) {
	reference := c.Param("reference")

	w, b, err := h.queries.GetWithdrawal(c.Request.Context(), reference)
	if err != nil {
		h.logger.Error("Failed to get withdrawal", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}
	if w == nil {
		RespondNotFound(c, "Withdrawal not found")
		return
	}

	RespondOK(c, WithdrawalDetailResponse{
		Withdrawal: mapWithdrawalToResponse(w),
		Bill:       mapBillToResponse(b),
	})
}

// Approve moves a batch of pending withdrawals to PROCESSING and dispatches
// their payments
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	var req BatchApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ids, operatorID, ok := parseBatchIDs(c, req.IDs, req.OperatorID)
	if !ok {
		return
	}

	result, err := h.admin.Approve(c.Request.Context(), ids, operatorID, req.Remark)
	if err != nil {
		h.logger.Error("Failed to approve withdrawals", "count", len(ids), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapBatchResult(result))
}

// Reject fails a batch of pending withdrawals and refunds the members
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	var req BatchRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ids, operatorID, ok := parseBatchIDs(c, req.IDs, req.OperatorID)
	if !ok {
		return
	}

	result, err := h.admin.Reject(c.Request.Context(), ids, operatorID, req.Reason, req.Remark)
	if err != nil {
		h.logger.Error("Failed to reject withdrawals", "count", len(ids), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapBatchResult(result))
}

func parseBatchIDs(c *gin.Context, rawIDs []string, rawOperatorID string) ([]uuid.UUID, uuid.UUID, bool) {
	operatorID, err := uuid.Parse(rawOperatorID)
	if err != nil {
		RespondBadRequest(c, "Invalid operator ID")
		return nil, uuid.Nil, false
	}

	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid withdrawal ID: "+raw)
			return nil, uuid.Nil, false
		}
		ids = append(ids, id)
	}

	return ids, operatorID, true
}

func mapBatchResult(result *settlement.BatchResult) BatchResponse {
	response := BatchResponse{
		Processed: make([]string, 0, len(result.Processed)),
		Skipped:   make([]string, 0, len(result.Skipped)),
	}
	for _, id := range result.Processed {
		response.Processed = append(response.Processed, id.String())
	}
	for _, id := range result.Skipped {
		response.Skipped = append(response.Skipped, id.String())
	}
	return response
}

// parsedFilters holds the decoded common list filters
type parsedFilters struct {
	memberID  *uuid.UUID
	status    string
	reference string
	from      *time.Time
	to        *time.Time
}

func bindListParams(c *gin.Context, logger *slog.Logger) (parsedFilters, PaginationParams, bool) {
	var raw ListFilterParams
	var pagination PaginationParams

	if err := c.ShouldBindQuery(&raw); err != nil {
		logger.Error("Invalid filter parameters", "error", err)
		RespondBadRequest(c, "Invalid filter parameters")
		return parsedFilters{}, pagination, false
	}
	if err := c.ShouldBindQuery(&pagination); err != nil {
		logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return parsedFilters{}, pagination, false
	}

	filters := parsedFilters{
		status:    raw.Status,
		reference: raw.Reference,
	}

	if raw.MemberID != "" {
		id, err := uuid.Parse(raw.MemberID)
		if err != nil {
			RespondBadRequest(c, "Invalid member ID")
			return parsedFilters{}, pagination, false
		}
		filters.memberID = &id
	}
	if raw.From != "" {
		from, err := time.Parse(time.RFC3339, raw.From)
		if err != nil {
			RespondBadRequest(c, "Invalid 'from' timestamp, expected RFC 3339")
			return parsedFilters{}, pagination, false
		}
		filters.from = &from
	}
	if raw.To != "" {
		to, err := time.Parse(time.RFC3339, raw.To)
		if err != nil {
			RespondBadRequest(c, "Invalid 'to' timestamp, expected RFC 3339")
			return parsedFilters{}, pagination, false
		}
		filters.to = &to
	}

	return filters, pagination, true
}
