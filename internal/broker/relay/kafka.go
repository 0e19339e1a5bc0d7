package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds configuration for the Kafka transport.
type KafkaConfig struct {
	Brokers       []string // list of broker addresses
	Topic         string
	ConsumerGroup string // prefix; each node consumes with its own group
	NodeID        string
}

// KafkaTransport relays envelopes through a single Kafka topic. Every node
// reads the whole topic with a per-node consumer group.
type KafkaTransport struct {
	config KafkaConfig
	writer *kafka.Writer
	reader *kafka.Reader

	mu     sync.Mutex
	closed bool
}

// NewKafkaTransport creates the shared producer and this node's consumer.
func NewKafkaTransport(config KafkaConfig) (*KafkaTransport, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker address is required")
	}
	if config.Topic == "" {
		config.Topic = "orderflow.events"
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "orderflow-relay"
	}
	if config.NodeID == "" {
		return nil, fmt.Errorf("node id is required for the Kafka relay")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.ConsumerGroup + "." + config.NodeID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
	})

	return &KafkaTransport{config: config, writer: writer, reader: reader}, nil
}

// Send writes msg keyed by node so one node's events stay ordered.
func (t *KafkaTransport) Send(ctx context.Context, msg []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := t.writer.WriteMessages(ctx, kafka.Message{Key: []byte(t.config.NodeID), Value: msg}); err != nil {
		return fmt.Errorf("write to kafka: %w", err)
	}
	return nil
}

// Receive reads messages until ctx is cancelled.
func (t *KafkaTransport) Receive(ctx context.Context, handle func([]byte)) error {
	for {
		msg, err := t.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read from kafka: %w", err)
		}
		handle(msg.Value)
	}
}

// Close shuts down the consumer and the producer.
func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var firstErr error
	if err := t.reader.Close(); err != nil {
		firstErr = err
	}
	if err := t.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
