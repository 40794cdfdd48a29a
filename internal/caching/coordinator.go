// Package caching implements the cache consistency coordinator: point-entry
// read-through with sliding expiry, version-keyed query caches with O(1) bulk
// invalidation, and cross-instance eviction relay over publish/subscribe.
// The cache is advisory only; every failure here degrades to a store read.
package caching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/keygate/license-service/internal/ports"
)

// Config tunes staleness windows and the invalidation channel.
type Config struct {
	PointTTL time.Duration
	ListTTL  time.Duration
	Channel  string
}

// Coordinator builds cache keys, manages per-kind version counters, and
// relays invalidations between instances. It never returns errors to callers:
// cache trouble is logged and treated as a miss.
type Coordinator struct {
	repo   ports.CacheRepository
	cfg    Config
	logger *slog.Logger
}

func NewCoordinator(repo ports.CacheRepository, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.PointTTL <= 0 {
		cfg.PointTTL = 5 * time.Minute
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 2 * time.Minute
	}
	if cfg.Channel == "" {
		cfg.Channel = "license.cache.invalidations"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{repo: repo, cfg: cfg, logger: logger}
}

type invalidationMessage struct {
	Key string `json:"key"`
}

// PointKey is the cache key for a single entity by identifier.
func PointKey(kind, id string) string {
	return kind + ":" + id
}

// GetPoint reads a point entry into out. A hit extends the entry's expiry,
// bounding staleness with a sliding window instead of a fixed one.
func (c *Coordinator) GetPoint(ctx context.Context, kind, id string, out any) bool {
	key := PointKey(kind, id)
	raw, found, err := c.repo.Get(ctx, key)
	if err != nil {
		c.miss(ctx, "get_point", key, err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.miss(ctx, "get_point", key, err)
		_ = c.repo.Remove(ctx, key)
		return false
	}
	if err := c.repo.Refresh(ctx, key, c.cfg.PointTTL); err != nil {
		c.miss(ctx, "refresh_point", key, err)
	}
	return true
}

// SetPoint writes back a fresh value after a store read or write.
func (c *Coordinator) SetPoint(ctx context.Context, kind, id string, v any) {
	key := PointKey(kind, id)
	raw, err := json.Marshal(v)
	if err != nil {
		c.miss(ctx, "set_point", key, err)
		return
	}
	if err := c.repo.Set(ctx, key, raw, c.cfg.PointTTL); err != nil {
		c.miss(ctx, "set_point", key, err)
	}
}

// InvalidatePoint evicts the local entry and publishes the key so every other
// instance evicts its own copy. The publish is fire-and-forget; the point TTL
// is the safety net if the message is dropped.
func (c *Coordinator) InvalidatePoint(ctx context.Context, kind, id string) {
	key := PointKey(kind, id)
	if err := c.repo.Remove(ctx, key); err != nil {
		c.miss(ctx, "invalidate_point", key, err)
	}
	payload, err := json.Marshal(invalidationMessage{Key: key})
	if err != nil {
		return
	}
	if err := c.repo.Publish(ctx, c.cfg.Channel, payload); err != nil {
		c.miss(ctx, "publish_invalidation", key, err)
	}
}

// GetList reads a cached query result for the current version of kind.
func (c *Coordinator) GetList(ctx context.Context, kind, signature string, out any) bool {
	key := c.listKey(ctx, kind, signature)
	raw, found, err := c.repo.Get(ctx, key)
	if err != nil {
		c.miss(ctx, "get_list", key, err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.miss(ctx, "get_list", key, err)
		_ = c.repo.Remove(ctx, key)
		return false
	}
	return true
}

// SetList caches a query result under the current version of kind.
func (c *Coordinator) SetList(ctx context.Context, kind, signature string, v any) {
	key := c.listKey(ctx, kind, signature)
	raw, err := json.Marshal(v)
	if err != nil {
		c.miss(ctx, "set_list", key, err)
		return
	}
	if err := c.repo.Set(ctx, key, raw, c.cfg.ListTTL); err != nil {
		c.miss(ctx, "set_list", key, err)
	}
}

// BumpListVersion invalidates every cached list for kind in one atomic
// increment: the version is embedded in each list key, so bumping it makes
// all previously written keys unreachable without enumerating them. The
// orphaned entries age out through the list TTL.
func (c *Coordinator) BumpListVersion(ctx context.Context, kind string) {
	if _, err := c.repo.Increment(ctx, versionKey(kind), 0); err != nil {
		c.miss(ctx, "bump_version", versionKey(kind), err)
	}
}

// Run subscribes to the invalidation channel and applies remote evictions to
// this instance's cache until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	return c.repo.Subscribe(ctx, c.cfg.Channel, func(payload []byte) {
		var msg invalidationMessage
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Key == "" {
			return
		}
		if err := c.repo.Remove(ctx, msg.Key); err != nil {
			c.miss(ctx, "apply_invalidation", msg.Key, err)
		}
	})
}

func (c *Coordinator) listKey(ctx context.Context, kind, signature string) string {
	version := int64(0)
	raw, found, err := c.repo.Get(ctx, versionKey(kind))
	if err != nil {
		c.miss(ctx, "get_version", versionKey(kind), err)
	} else if found {
		if parsed, parseErr := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64); parseErr == nil {
			version = parsed
		}
	}
	return kind + ":v" + strconv.FormatInt(version, 10) + ":" + signature
}

func versionKey(kind string) string {
	return kind + ":version"
}

func (c *Coordinator) miss(ctx context.Context, operation, key string, err error) {
	c.logger.WarnContext(ctx, "cache operation degraded to miss",
		"module", "caching",
		"layer", "coordinator",
		"operation", operation,
		"outcome", "failure",
		"key", key,
		"error", err,
	)
}

// Signature renders criteria and list options into a deterministic short hash
// used as the filter-signature segment of query-cache keys. Clauses are sorted
// so logically equal filters share a key regardless of construction order.
func Signature(criteria []ports.Criteria, opts ports.ListOptions) string {
	opts = opts.Normalize()
	parts := make([]string, 0, len(criteria)+2)
	for _, clause := range criteria {
		parts = append(parts, clause.CanonicalString())
	}
	sort.Strings(parts)
	parts = append(parts,
		"order:"+opts.OrderBy+":"+strconv.FormatBool(opts.Descending),
		"page:"+strconv.Itoa(opts.Page)+":"+strconv.Itoa(opts.PerPage),
	)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}
