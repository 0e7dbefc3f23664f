package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/offline-payment-sync/internal/domain/payment"
)

// respondWithDomainError maps domain errors onto HTTP statuses. Anything that
// is not a caller mistake is logged and hidden behind a 500.
func respondWithDomainError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	var validationErr payment.ValidationError
	var storeErr *payment.StoreFailure

	switch {
	case errors.As(err, &validationErr):
		logger.Warn(msg, "field", validationErr.Field, "error", err)
		RespondValidationError(c, validationErr.Field, validationErr.Error())
	case errors.Is(err, payment.ErrTransactionNotFound{}):
		RespondNotFound(c, "Transaction not found")
	case errors.Is(err, payment.ErrInvalidState{}):
		logger.Warn(msg, "error", err)
		RespondConflict(c, err.Error())
	case errors.As(err, &storeErr):
		logger.Error(msg, "op", storeErr.Op, "error", err)
		RespondInternalError(c)
	default:
		logger.Error(msg, "error", err)
		RespondInternalError(c)
	}
}
