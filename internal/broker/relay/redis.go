package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisTransport relays envelopes over a Redis pub/sub channel. Pub/sub has
// no history, which matches the broker's live-only delivery.
type RedisTransport struct {
	client  *redis.Client
	channel string
}

func NewRedisTransport(client *redis.Client, channel string) *RedisTransport {
	if channel == "" {
		channel = "orderflow:events"
	}
	return &RedisTransport{client: client, channel: channel}
}

func (t *RedisTransport) Send(ctx context.Context, msg []byte) error {
	if err := t.client.Publish(ctx, t.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

func (t *RedisTransport) Receive(ctx context.Context, handle func([]byte)) error {
	sub := t.client.Subscribe(ctx, t.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", t.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			handle([]byte(msg.Payload))
		}
	}
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}
