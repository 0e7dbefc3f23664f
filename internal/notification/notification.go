// Package notification delivers best-effort messages about settled and stuck
// payments. Delivery never changes the outcome of a payment: failures are
// parked in a dead letter when one is configured and logged otherwise.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
)

// Publisher hands a notification to the delivery channel
type Publisher interface {
	Publish(ctx context.Context, n *shared.Notification) error
}

// DeadLetter keeps notifications the publisher refused
type DeadLetter interface {
	Park(ctx context.Context, n *shared.Notification) error
	Pending(ctx context.Context, limit int) ([]*shared.Notification, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

// Dispatcher publishes notifications and parks the ones that could not be sent
type Dispatcher struct {
	logger     *slog.Logger
	publisher  Publisher
	deadLetter DeadLetter // nil disables parking
}

func NewDispatcher(logger *slog.Logger, publisher Publisher, deadLetter DeadLetter) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		publisher:  publisher,
		deadLetter: deadLetter,
	}
}

// Notify publishes n. An error is returned only when the notification was
// neither published nor parked.
func (d *Dispatcher) Notify(ctx context.Context, n *shared.Notification) error {
	publishErr := d.publisher.Publish(ctx, n)
	if publishErr == nil {
		return nil
	}

	d.logger.Warn("Notification delivery failed",
		"notification_id", n.ID.String(),
		"channel", string(n.Channel),
		"transaction_id", n.TransactionID.String(),
		"error", publishErr,
	)

	if d.deadLetter == nil {
		return fmt.Errorf("notification %s not delivered: %w", n.ID, publishErr)
	}
	if err := d.deadLetter.Park(ctx, n); err != nil {
		return fmt.Errorf("notification %s not delivered: %w", n.ID, errors.Join(publishErr, err))
	}
	return nil
}

// Redeliver publishes up to limit parked notifications again and removes the
// ones that went through. It returns how many were delivered.
func (d *Dispatcher) Redeliver(ctx context.Context, limit int) (int, error) {
	if d.deadLetter == nil {
		return 0, nil
	}

	parked, err := d.deadLetter.Pending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load parked notifications: %w", err)
	}

	delivered := 0
	for _, n := range parked {
		if err := d.publisher.Publish(ctx, n); err != nil {
			d.logger.Debug("Parked notification still undeliverable", "notification_id", n.ID.String(), "error", err)
			continue
		}
		if err := d.deadLetter.Remove(ctx, n.ID); err != nil {
			d.logger.Warn("Delivered notification could not be removed from dead letter",
				"notification_id", n.ID.String(),
				"error", err,
			)
		}
		delivered++
	}

	if delivered > 0 {
		d.logger.Info("Redelivered parked notifications", "count", delivered, "parked", len(parked))
	}
	return delivered, nil
}

// PaymentSettled is the merchant confirmation sent when intake settled a payment
func PaymentSettled(tx *payment.Transaction) *shared.Notification {
	msg := fmt.Sprintf("Payment of %s processed successfully. Transaction ID: %s", tx.FormattedAmount(), tx.ProviderReference)
	return shared.NewNotification(shared.NotificationChannelSMS, tx.MerchantID, msg, tx.ID)
}

// OfflinePaymentSynced is the merchant confirmation sent when a queued payment settled
func OfflinePaymentSynced(tx *payment.Transaction) *shared.Notification {
	msg := fmt.Sprintf("Offline payment of %s processed successfully. Transaction ID: %s", tx.FormattedAmount(), tx.ProviderReference)
	return shared.NewNotification(shared.NotificationChannelSMS, tx.MerchantID, msg, tx.ID)
}

// ManualInterventionRequired is the alert sent when a payment used its last attempt
func ManualInterventionRequired(tx *payment.Transaction) *shared.Notification {
	msg := fmt.Sprintf("CRITICAL: Payment of %s failed after %d attempts. Manual intervention required. Payment ID: %s",
		tx.FormattedAmount(), tx.RetryCount, tx.ID)
	return shared.NewNotification(shared.NotificationChannelAlert, tx.MerchantID, msg, tx.ID)
}

// SettledButNotRecorded is the alert sent when money moved but the record could not be written
func SettledButNotRecorded(tx *payment.Transaction, providerReference string) *shared.Notification {
	msg := fmt.Sprintf("CRITICAL: Payment of %s was charged (provider reference %s) but could not be recorded. Payment ID: %s",
		tx.FormattedAmount(), providerReference, tx.ID)
	return shared.NewNotification(shared.NotificationChannelAlert, tx.MerchantID, msg, tx.ID)
}
