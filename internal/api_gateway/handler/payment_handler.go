package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/api_gateway/middleware"
	"github.com/offline-payment-sync/internal/api_gateway/service"
)

// PaymentHandler handles HTTP requests for the payment queue
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Create submits a payment. It settles immediately when the processor is
// reachable and queues it otherwise; both outcomes answer 201.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.paymentService.Submit(c.Request.Context(), &service.SubmitPaymentRequest{
		Amount:        req.Amount,
		Currency:      req.Currency,
		MerchantID:    req.MerchantID,
		CustomerID:    req.CustomerID,
		Description:   req.Description,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		respondWithDomainError(c, h.logger, "Failed to submit payment", err)
		return
	}

	RespondCreated(c, mapSubmitResultToResponse(result))
}

// Sync runs one sync pass and returns its summary
func (h *PaymentHandler) Sync(c *gin.Context) {
	summary, err := h.paymentService.SyncNow(c.Request.Context())
	if err != nil {
		respondWithDomainError(c, h.logger, "Manual sync failed", err)
		return
	}

	RespondOK(c, summary)
}

// Retry resets a failed payment so the next pass attempts it again
func (h *PaymentHandler) Retry(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	tx, err := h.paymentService.RetryTransaction(c.Request.Context(), id)
	if err != nil {
		respondWithDomainError(c, h.logger, "Failed to retry payment", err)
		return
	}

	RespondOK(c, mapTransactionToResponse(tx))
}

// GetByID retrieves a payment by its ID, returns 404 if not found
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	tx, err := h.paymentService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondWithDomainError(c, h.logger, "Failed to get payment", err)
		return
	}

	RespondOK(c, mapTransactionToResponse(tx))
}

// List retrieves payments, most recent first
func (h *PaymentHandler) List(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	transactions, total, err := h.paymentService.ListTransactions(c.Request.Context(), pagination.Page, pagination.PerPage)
	if err != nil {
		respondWithDomainError(c, h.logger, "Failed to list payments", err)
		return
	}

	response := make([]TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		response = append(response, mapTransactionToResponse(tx))
	}

	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, int(total))
}

// SyncPasses returns the most recent sync pass reports
func (h *PaymentHandler) SyncPasses(c *gin.Context) {
	var query SyncPassesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		RespondBadRequest(c, "Invalid limit")
		return
	}

	passes, err := h.paymentService.RecentSyncPasses(c.Request.Context(), query.Limit)
	if err != nil {
		respondWithDomainError(c, h.logger, "Failed to list sync passes", err)
		return
	}

	response := make([]SyncPassResponse, 0, len(passes))
	for _, p := range passes {
		response = append(response, mapSyncPassToResponse(p))
	}

	RespondOK(c, response)
}

func (h *PaymentHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid transaction ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transaction ID")
		return uuid.Nil, false
	}
	return id, true
}
