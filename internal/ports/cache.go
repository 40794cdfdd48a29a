package ports

import (
	"context"
	"time"
)

// CacheRepository is the advisory key/value store behind the consistency
// coordinator. Implementations bound every call with a short timeout; the
// coordinator treats any error as a cache miss and falls back to the store,
// so correctness never depends on cache availability.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Increment atomically bumps an integer key in a single round trip,
	// applying ttlOnCreate only when the key is first created.
	Increment(ctx context.Context, key string, ttlOnCreate time.Duration) (int64, error)
	// Refresh extends the expiry of an existing key (sliding TTL).
	Refresh(ctx context.Context, key string, ttl time.Duration) error
	// Publish is fire-and-forget: no acknowledgement, retry, or ordering.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers channel payloads to handler until ctx is cancelled.
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error
}
