// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/metrics"
)

const runIDHeader = "songgen-run-id"

// Kafka publishes to a topic named after the stream. Messages are keyed by
// routing key and hash-partitioned, so each listener stays on one partition.
// Writes are asynchronous; delivery failures surface through the completion
// callback.
type Kafka struct {
	writer *kafka.Writer
	topic  string
	runID  string
	logger zerolog.Logger
}

// NewKafka provisions the topic (when enabled) and starts a writer.
func NewKafka(ctx context.Context, topic string, cfg config.KafkaConfig, runID string, logger zerolog.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.CreateTopic {
		if err := ensureTopic(ctx, cfg.Brokers[0], kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: cfg.ReplicationFactor,
		}); err != nil {
			return nil, err
		}
	}

	k := &Kafka{topic: topic, runID: runID, logger: logger}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion:   k.completed,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error().Str(log.FieldEvent, "kafka.writer_error").Msgf(msg, args...)
		}),
	}
	return k, nil
}

// ensureTopic creates the topic through the cluster controller. An existing
// topic is accepted as is.
func ensureTopic(ctx context.Context, broker string, topic kafka.TopicConfig) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka: dial %s: %w", broker, err)
	}
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: find controller: %w", err)
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	cc, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("kafka: dial controller %s: %w", addr, err)
	}
	defer func() { _ = cc.Close() }()

	if err := cc.CreateTopics(topic); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", topic.Topic, err)
	}
	return nil
}

func (k *Kafka) message(routingKey string, payload []byte) kafka.Message {
	msg := kafka.Message{
		Key:   []byte(routingKey),
		Value: payload,
	}
	if k.runID != "" {
		msg.Headers = []kafka.Header{{Key: runIDHeader, Value: []byte(k.runID)}}
	}
	return msg
}

func (k *Kafka) Send(ctx context.Context, routingKey string, payload []byte) error {
	if err := k.writer.WriteMessages(ctx, k.message(routingKey, payload)); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

func (k *Kafka) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	metrics.AddSinkDeliveryFailures(config.SinkKafka, len(messages))
	k.logger.Error().
		Err(err).
		Int(log.FieldBatchSize, len(messages)).
		Str(log.FieldEvent, "kafka.delivery_failed").
		Msg("kafka delivery failed")
}

// Close flushes pending asynchronous writes.
func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("kafka: close writer: %w", err)
	}
	return nil
}
