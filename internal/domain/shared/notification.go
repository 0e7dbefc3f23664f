package shared

import (
	"time"

	"github.com/google/uuid"
)

// Notification defines a message handed to the notification collaborator
type Notification struct {
	ID            uuid.UUID           `json:"id"`
	Channel       NotificationChannel `json:"channel"`
	Recipient     string              `json:"recipient"`
	Message       string              `json:"message"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// NewNotification builds a notification stamped with a fresh id and the current time.
func NewNotification(channel NotificationChannel, recipient, message string, transactionID uuid.UUID) *Notification {
	return &Notification{
		ID:            uuid.New(),
		Channel:       channel,
		Recipient:     recipient,
		Message:       message,
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}
