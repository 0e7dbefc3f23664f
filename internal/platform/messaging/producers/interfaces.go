package producers

import (
	"context"

	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// NotificationPublisher hands notifications to the delivery pipeline
type NotificationPublisher interface {
	Publish(ctx context.Context, n *shared.Notification) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
