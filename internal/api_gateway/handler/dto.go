package handler

import (
	"time"

	"github.com/offline-payment-sync/internal/api_gateway/service"
	"github.com/offline-payment-sync/internal/connectivity"
	"github.com/offline-payment-sync/internal/domain/audit"
	"github.com/offline-payment-sync/internal/domain/payment"
)

// CreateTransactionRequest represents a request to submit a new payment.
// Field level rules beyond presence are enforced by the domain so that the
// error names the offending field.
type CreateTransactionRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
	MerchantID  string `json:"merchant_id" binding:"required"`
	CustomerID  string `json:"customer_id" binding:"required"`
	Description string `json:"description,omitempty"`
}

// TransactionResponse represents a payment record in API responses
type TransactionResponse struct {
	ID                string `json:"id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	MerchantID        string `json:"merchant_id"`
	CustomerID        string `json:"customer_id"`
	Description       string `json:"description,omitempty"`
	Status            string `json:"status"`
	RetryCount        int    `json:"retry_count"`
	ProviderReference string `json:"provider_reference,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	CreatedAt         string `json:"created_at"`
	SyncedAt          string `json:"synced_at,omitempty"`
}

// SubmitResponse is returned by the create endpoint
type SubmitResponse struct {
	SettledImmediately bool                `json:"settled_immediately"`
	Record             TransactionResponse `json:"record"`
}

// ConnectivityRequest reports an observation of the processor link
type ConnectivityRequest struct {
	Reachable *bool `json:"reachable" binding:"required"`
	Strength  *int  `json:"strength,omitempty" binding:"omitempty,min=0,max=100"`
}

// ConnectivityResponse represents the oracle snapshot in API responses
type ConnectivityResponse struct {
	Reachable  bool   `json:"reachable"`
	Strength   int    `json:"strength"`
	CanSettle  bool   `json:"can_settle"`
	Restored   bool   `json:"restored,omitempty"`
	ObservedAt string `json:"observed_at,omitempty"`
}

// SyncPassResponse represents one audited sync pass
type SyncPassResponse struct {
	ID         string              `json:"id"`
	Trigger    string              `json:"trigger"`
	StartedAt  string              `json:"started_at"`
	FinishedAt string              `json:"finished_at"`
	Cancelled  bool                `json:"cancelled"`
	Summary    payment.SyncSummary `json:"summary"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// SyncPassesQuery bounds the number of pass reports returned
type SyncPassesQuery struct {
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}

func mapTransactionToResponse(tx *payment.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:                tx.ID.String(),
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		MerchantID:        tx.MerchantID,
		CustomerID:        tx.CustomerID,
		Description:       tx.Description,
		Status:            string(tx.Status),
		RetryCount:        tx.RetryCount,
		ProviderReference: tx.ProviderReference,
		LastError:         tx.LastError,
		CreatedAt:         tx.CreatedAt.Format(time.RFC3339),
	}

	if tx.SyncedAt != nil {
		response.SyncedAt = tx.SyncedAt.Format(time.RFC3339)
	}

	return response
}

func mapSubmitResultToResponse(result *service.SubmitResult) SubmitResponse {
	return SubmitResponse{
		SettledImmediately: result.SettledImmediately,
		Record:             mapTransactionToResponse(result.Record),
	}
}

func mapSnapshotToResponse(s connectivity.Snapshot, canSettle, restored bool) ConnectivityResponse {
	response := ConnectivityResponse{
		Reachable: s.Reachable,
		Strength:  s.Strength,
		CanSettle: canSettle,
		Restored:  restored,
	}
	if !s.ObservedAt.IsZero() {
		response.ObservedAt = s.ObservedAt.Format(time.RFC3339Nano)
	}
	return response
}

func mapSyncPassToResponse(p *audit.SyncPass) SyncPassResponse {
	return SyncPassResponse{
		ID:         p.ID,
		Trigger:    string(p.Trigger),
		StartedAt:  p.StartedAt.Format(time.RFC3339Nano),
		FinishedAt: p.FinishedAt.Format(time.RFC3339Nano),
		Cancelled:  p.Cancelled,
		Summary:    p.Summary,
	}
}
