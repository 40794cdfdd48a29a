package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 200 * time.Millisecond

// RedisRepository implements ports.CacheRepository on a Redis client.
// Every point operation runs under a short deadline so a slow or
// unreachable Redis degrades reads into misses instead of stalling
// request handling.
type RedisRepository struct {
	client    *redis.Client
	opTimeout time.Duration
}

func NewRedisRepository(client *redis.Client, opTimeout time.Duration) *RedisRepository {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &RedisRepository{client: client, opTimeout: opTimeout}
}

func (r *RedisRepository) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return value, true, nil
}

func (r *RedisRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache remove: %w", err)
	}
	return nil
}

func (r *RedisRepository) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Increment bumps a counter, creating it at 1 when absent. A positive
// ttlOnCreate bounds the lifetime of freshly created counters so
// abandoned key families eventually vanish.
func (r *RedisRepository) Increment(ctx context.Context, key string, ttlOnCreate time.Duration) (int64, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	value, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache increment %q: %w", key, err)
	}
	if value == 1 && ttlOnCreate > 0 {
		if err := r.client.Expire(ctx, key, ttlOnCreate).Err(); err != nil {
			return value, fmt.Errorf("cache increment expire %q: %w", key, err)
		}
	}
	return value, nil
}

// Refresh extends the lifetime of an existing key. Missing keys are not
// an error: the entry may have been evicted between read and refresh.
func (r *RedisRepository) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("cache refresh %q: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("cache publish %q: %w", channel, err)
	}
	return nil
}

// Subscribe delivers every message on channel to handler until ctx is
// canceled. It blocks for the lifetime of the subscription, so callers
// run it in a dedicated goroutine.
func (r *RedisRepository) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	sub := r.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("cache subscribe %q: %w", channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			handler([]byte(msg.Payload))
		}
	}
}
