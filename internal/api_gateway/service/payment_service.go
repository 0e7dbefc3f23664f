package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/connectivity"
	"github.com/offline-payment-sync/internal/domain/audit"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/offline-payment-sync/internal/notification"
	"github.com/offline-payment-sync/internal/settlement"
)

// SubmitPaymentRequest carries the caller supplied fields of a new payment
type SubmitPaymentRequest struct {
	Amount        int64
	Currency      string
	MerchantID    string
	CustomerID    string
	Description   string
	CorrelationID string
}

// SubmitResult reports whether the payment settled during intake
type SubmitResult struct {
	SettledImmediately bool                 `json:"settled_immediately"`
	Record             *payment.Transaction `json:"record"`
}

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	repo              payment.Repository
	oracle            *connectivity.Oracle
	settler           settlement.Settler
	notifier          Notifier
	syncRunner        SyncRunner
	auditRepo         audit.Repository // nil when auditing is off
	logger            *slog.Logger
	maxRetries        int
	settlementTimeout time.Duration
	now               func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	logger *slog.Logger,
	repo payment.Repository,
	oracle *connectivity.Oracle,
	settler settlement.Settler,
	notifier Notifier,
	syncRunner SyncRunner,
	auditRepo audit.Repository,
	maxRetries int,
	settlementTimeout time.Duration,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		repo:              repo,
		oracle:            oracle,
		settler:           settler,
		notifier:          notifier,
		syncRunner:        syncRunner,
		auditRepo:         auditRepo,
		logger:            logger,
		maxRetries:        maxRetries,
		settlementTimeout: settlementTimeout,
		now:               time.Now,
	}
}

// Submit applies the intake policy: settle immediately when the processor is
// reachable over a strong enough link, otherwise queue the payment.
func (s *PaymentServiceImpl) Submit(ctx context.Context, req *SubmitPaymentRequest) (*SubmitResult, error) {
	tx, err := payment.NewTransaction(req.Amount, req.Currency, req.MerchantID, req.CustomerID, req.Description)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("transaction_id", tx.ID.String())
	if req.CorrelationID != "" {
		logger = logger.With("correlation_id", req.CorrelationID)
	}

	if !s.oracle.CanSettle() {
		if err := s.create(ctx, tx); err != nil {
			return nil, err
		}
		logger.Info("Processor unreachable, payment queued for sync")
		return &SubmitResult{Record: tx}, nil
	}

	// The attempt runs against the in-memory record; nothing is stored until
	// the outcome is known, so no other pass can pick it up meanwhile.
	if err := tx.Claim(s.now().UTC()); err != nil {
		return nil, err
	}

	settleCtx, cancel := context.WithTimeout(ctx, s.settlementTimeout)
	result, settleErr := s.settler.Settle(settleCtx, settlement.NewRequest(tx, false))
	cancel()

	if settleErr == nil {
		return s.recordSettled(ctx, logger, tx, result.ProviderTransactionID, req.CorrelationID)
	}
	return s.recordQueued(ctx, logger, tx, settleErr, req.CorrelationID)
}

func (s *PaymentServiceImpl) recordSettled(ctx context.Context, logger *slog.Logger, tx *payment.Transaction, providerReference, correlationID string) (*SubmitResult, error) {
	if err := tx.Complete(providerReference, s.now().UTC()); err != nil {
		return nil, err
	}

	// The charge went through; the record is written even if the caller hung up
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settlementTimeout)
	defer cancel()

	if err := s.create(writeCtx, tx); err != nil {
		logger.Error("CRITICAL: payment settled but could not be recorded",
			"provider_transaction_id", providerReference,
			"amount", tx.Amount,
			"currency", tx.Currency,
			"error", err,
		)
		s.notify(writeCtx, logger, notification.SettledButNotRecorded(tx, providerReference), correlationID)
		return nil, err
	}

	logger.Info("Payment settled during intake", "provider_transaction_id", providerReference)
	s.notify(writeCtx, logger, notification.PaymentSettled(tx), correlationID)
	return &SubmitResult{SettledImmediately: true, Record: tx}, nil
}

func (s *PaymentServiceImpl) recordQueued(ctx context.Context, logger *slog.Logger, tx *payment.Transaction, settleErr error, correlationID string) (*SubmitResult, error) {
	reason := settleErr.Error()
	var failure *payment.SettlementFailure
	if errors.As(settleErr, &failure) {
		reason = failure.Reason
	}

	exhausted, err := tx.Fail(reason, s.maxRetries)
	if err != nil {
		return nil, err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settlementTimeout)
	defer cancel()

	if err := s.create(writeCtx, tx); err != nil {
		return nil, err
	}

	if exhausted {
		logger.Error("Payment failed on its only attempt, manual intervention required", "reason", reason)
		s.notify(writeCtx, logger, notification.ManualInterventionRequired(tx), correlationID)
	} else {
		logger.Warn("Immediate settlement failed, payment queued for sync", "reason", reason)
	}
	return &SubmitResult{Record: tx}, nil
}

func (s *PaymentServiceImpl) create(ctx context.Context, tx *payment.Transaction) error {
	if err := s.repo.Create(ctx, tx); err != nil {
		return &payment.StoreFailure{Op: "create", Err: err}
	}
	return nil
}

func (s *PaymentServiceImpl) notify(ctx context.Context, logger *slog.Logger, n *shared.Notification, correlationID string) {
	n.CorrelationID = correlationID
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.Warn("Notification not delivered", "channel", string(n.Channel), "error", err)
	}
}

func (s *PaymentServiceImpl) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound{}) {
			return nil, err
		}
		return nil, &payment.StoreFailure{Op: "get", Err: err}
	}
	return tx, nil
}

func (s *PaymentServiceImpl) ListTransactions(ctx context.Context, page, perPage int) ([]*payment.Transaction, int64, error) {
	offset := (page - 1) * perPage

	transactions, err := s.repo.List(ctx, perPage, offset)
	if err != nil {
		return nil, 0, &payment.StoreFailure{Op: "list", Err: err}
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, &payment.StoreFailure{Op: "count", Err: err}
	}

	return transactions, total, nil
}

func (s *PaymentServiceImpl) RetryTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := tx.Status
	if err := tx.ManualRetry(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, tx, previous); err != nil {
		var conflict payment.ErrStatusConflict
		if errors.As(err, &conflict) {
			// Someone else moved the record first; report it like any other refused transition
			return nil, payment.ErrInvalidState{TransactionID: id, From: previous, Event: payment.EventManualRetry}
		}
		if errors.Is(err, payment.ErrTransactionNotFound{}) {
			return nil, err
		}
		return nil, &payment.StoreFailure{Op: "update", Err: err}
	}

	s.logger.Info("Failed payment reset for retry", "transaction_id", id.String())
	return tx, nil
}

func (s *PaymentServiceImpl) SyncNow(ctx context.Context) (payment.SyncSummary, error) {
	summary, err := s.syncRunner.Run(ctx, shared.SyncTriggerManual)
	if err != nil {
		return summary, fmt.Errorf("sync pass failed: %w", err)
	}
	return summary, nil
}

func (s *PaymentServiceImpl) RecentSyncPasses(ctx context.Context, limit int) ([]*audit.SyncPass, error) {
	if s.auditRepo == nil {
		return []*audit.SyncPass{}, nil
	}
	passes, err := s.auditRepo.RecentSyncPasses(ctx, limit)
	if err != nil {
		return nil, &payment.StoreFailure{Op: "list sync passes", Err: err}
	}
	return passes, nil
}
