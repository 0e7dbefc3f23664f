package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/offline-payment-sync/internal/config"
	"github.com/offline-payment-sync/internal/connectivity"
	"github.com/segmentio/kafka-go"
)

// ConnectivityProducer shares oracle observations with other processes
type ConnectivityProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewConnectivityProducer(logger *slog.Logger, kafkaCfg *config.KafkaConfig, topic string) (*ConnectivityProducer, error) {
	conn, err := kafka.Dial("tcp", kafkaCfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for connectivity producer: %w", err)
	}
	defer conn.Close()

	if err := createKafkaTopicIfNotExists(conn, topic, kafkaCfg.NumPartitions, kafkaCfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure connectivity topic exists: %w", err)
	}

	return &ConnectivityProducer{
		logger: logger,
		topic:  topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(kafkaCfg.Brokers),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: kafkaCfg.WriteTimeout,
		},
	}, nil
}

// PublishObservation publishes the snapshot as JSON keyed by its observation time
func (p *ConnectivityProducer) PublishObservation(ctx context.Context, s connectivity.Snapshot) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal connectivity observation: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(s.ObservedAt.Format(time.RFC3339Nano)),
		Value: value,
	}); err != nil {
		return fmt.Errorf("failed to publish connectivity observation to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published connectivity observation", "topic", p.topic, "reachable", s.Reachable)
	return nil
}

func (p *ConnectivityProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close connectivity kafka writer: %w", err)
	}
	return nil
}
