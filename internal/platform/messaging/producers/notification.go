package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/offline-payment-sync/internal/config"
	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// NotificationProducer publishes notifications to Kafka, one topic per channel:
// customer messages go to the notification topic and operator alerts to the
// alert topic. Writes are synchronous so callers can fall back on failure.
type NotificationProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topics map[shared.NotificationChannel]string
}

// NewNotificationProducer ensures both topics exist and creates the writer
func NewNotificationProducer(logger *slog.Logger, kafkaCfg *config.KafkaConfig, cfg *config.NotificationConfig) (*NotificationProducer, error) {
	if cfg.Topic == "" || cfg.AlertTopic == "" {
		return nil, fmt.Errorf("notification topics are not configured")
	}

	conn, err := kafka.Dial("tcp", kafkaCfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for notification producer: %w", err)
	}
	defer conn.Close()

	for _, topic := range []string{cfg.Topic, cfg.AlertTopic} {
		if err := createKafkaTopicIfNotExists(conn, topic, kafkaCfg.NumPartitions, kafkaCfg.ReplicationFactor, logger); err != nil {
			return nil, fmt.Errorf("failed to ensure notification topic %s exists: %w", topic, err)
		}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaCfg.Brokers),
		Balancer:     &kafka.Hash{}, // keep a transaction's notifications on one partition
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: kafkaCfg.WriteTimeout,
	}

	return &NotificationProducer{
		logger: logger,
		writer: writer,
		topics: map[shared.NotificationChannel]string{
			shared.NotificationChannelSMS:   cfg.Topic,
			shared.NotificationChannelAlert: cfg.AlertTopic,
		},
	}, nil
}

func (p *NotificationProducer) Publish(ctx context.Context, n *shared.Notification) error {
	topic, ok := p.topics[n.Channel]
	if !ok {
		return fmt.Errorf("no topic configured for notification channel %q", n.Channel)
	}

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(n.TransactionID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "channel", Value: []byte(n.Channel)},
		},
	}
	if n.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "correlation_id", Value: []byte(n.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish notification",
			"topic", topic,
			"transaction_id", n.TransactionID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to publish notification to %s: %w", topic, err)
	}

	p.logger.Debug("Published notification",
		"topic", topic,
		"notification_id", n.ID.String(),
		"transaction_id", n.TransactionID.String(),
	)
	return nil
}

func (p *NotificationProducer) Close() error {
	p.logger.Info("Closing notification producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close notification kafka writer: %w", err)
	}
	return nil
}
