package relay

import (
	"fmt"
	"log"
	"strings"

	"github.com/darkden-lab/orderflow/internal/config"
)

// NewTransport creates the Transport selected by cfg.Relay. It returns nil
// for "none" or an empty setting, which keeps the broker single-node.
func NewTransport(cfg *config.Config) (Transport, error) {
	switch cfg.Relay {
	case "", "none":
		log.Println("relay: disabled, broker is single-node (RELAY not set)")
		return nil, nil
	case "kafka":
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		log.Printf("relay: using Kafka with brokers=%v topic=%s", brokers, cfg.KafkaTopic)
		t, err := NewKafkaTransport(KafkaConfig{
			Brokers:       nonEmpty(brokers),
			Topic:         cfg.KafkaTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
			NodeID:        cfg.NodeID,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case "redis":
		log.Printf("relay: using Redis pub/sub on %s channel=%s", cfg.RedisAddr, cfg.RedisChannel)
		client, err := NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return NewRedisTransport(client, cfg.RedisChannel), nil
	case "amqp":
		log.Printf("relay: using AMQP fanout exchange %s", cfg.AMQPExchange)
		t, err := DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown relay %q (want none, kafka, redis or amqp)", cfg.Relay)
	}
}

// NewFromConfig builds and starts a Relay delivering into local, or returns
// nil when no relay is configured.
func NewFromConfig(cfg *config.Config, local Deliverer) (*Relay, error) {
	t, err := NewTransport(cfg)
	if err != nil || t == nil {
		return nil, err
	}
	r := New(cfg.NodeID, t, local, DefaultOutboxSize)
	r.Start()
	return r, nil
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
