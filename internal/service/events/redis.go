package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"potholeserver/internal/config"
)

// RedisPublisher forwards events to a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// ConnectRedis returns nil when REDIS_ADDR is unset.
func ConnectRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

// NewRedisPublisher publishes on channel using client.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the pub/sub channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Publish encodes ev as JSON and publishes it.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish error: %w", err)
	}
	return nil
}
