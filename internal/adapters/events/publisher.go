package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans audit events out on a Redis channel. Consumers
// subscribe with a pattern match on the channel prefix.
type RedisPublisher struct {
	client        *redis.Client
	channelPrefix string
}

func NewRedisPublisher(client *redis.Client, channelPrefix string) *RedisPublisher {
	if channelPrefix == "" {
		channelPrefix = "license.audit"
	}
	return &RedisPublisher{client: client, channelPrefix: channelPrefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	channel := p.channelPrefix + "." + eventType
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %q: %w", channel, err)
	}
	return nil
}

// LoggingPublisher writes audit events to the structured log. It serves
// deployments without a broker and local development.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	p.logger.InfoContext(ctx, "audit event published",
		"module", "events.publisher",
		"layer", "adapter",
		"event_type", eventType,
		"payload", string(payload),
	)
	return nil
}
