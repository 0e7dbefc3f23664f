// Package settlement is the boundary to the remote payment processor.
package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/config"
	"github.com/offline-payment-sync/internal/domain/payment"
)

// Request carries the immutable fields of a transaction to the processor
type Request struct {
	TransactionID uuid.UUID         `json:"-"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	CustomerID    string            `json:"customer_id"`
	MerchantID    string            `json:"merchant_id"`
	Description   string            `json:"description"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Result is the processor's acknowledgement of a settled charge
type Result struct {
	ProviderTransactionID string `json:"id"`
}

// Settler executes a charge. Implementations return *payment.SettlementFailure
// for rejections and timeouts.
type Settler interface {
	Settle(ctx context.Context, req Request) (*Result, error)
}

// NewRequest builds the settlement request for tx. Sync attempts tag the
// request with the original payment id.
func NewRequest(tx *payment.Transaction, fromSync bool) Request {
	metadata := map[string]string{
		"merchant_id": tx.MerchantID,
		"customer_id": tx.CustomerID,
	}
	if fromSync {
		metadata["original_payment_id"] = tx.ID.String()
	}

	return Request{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		CustomerID:    tx.CustomerID,
		MerchantID:    tx.MerchantID,
		Description:   tx.SettlementDescription(),
		Metadata:      metadata,
	}
}

// NewSettler returns the collaborator selected by SETTLEMENT_MODE
func NewSettler(logger *slog.Logger, cfg *config.SettlementConfig) Settler {
	if cfg.Mode == config.SettlementModeHTTP {
		return NewHTTPClient(logger, cfg)
	}
	logger.Warn("Using simulated settlement, no charges reach a processor",
		"failure_rate", cfg.SimulatedFailureRate,
	)
	return NewSimulator(logger, cfg.SimulatedFailureRate, 0)
}
