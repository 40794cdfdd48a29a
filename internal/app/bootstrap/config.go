package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the license service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	HeartbeatTTL time.Duration

	CachePointTTL       time.Duration
	CacheListTTL        time.Duration
	CacheOpTimeout      time.Duration
	InvalidationChannel string

	AuditChannelPrefix string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	License struct {
		HeartbeatTTLHours int `yaml:"heartbeat_ttl_hours"`
	} `yaml:"license"`
	Cache struct {
		PointTTLSeconds     int    `yaml:"point_ttl_seconds"`
		ListTTLSeconds      int    `yaml:"list_ttl_seconds"`
		OpTimeoutMillis     int    `yaml:"op_timeout_millis"`
		InvalidationChannel string `yaml:"invalidation_channel"`
	} `yaml:"cache"`
	Audit struct {
		ChannelPrefix string `yaml:"channel_prefix"`
	} `yaml:"audit"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:           "license-service",
		HTTPPort:            8080,
		GRPCPort:            9090,
		MaxDBConns:          20,
		HeartbeatTTL:        24 * time.Hour,
		CachePointTTL:       5 * time.Minute,
		CacheListTTL:        2 * time.Minute,
		CacheOpTimeout:      200 * time.Millisecond,
		InvalidationChannel: "license.cache.invalidations",
		AuditChannelPrefix:  "license.audit",
		OutboxPollInterval:  2 * time.Second,
		OutboxBatchSize:     100,
		OutboxClaimTTL:      30 * time.Second,
		OutboxMaxRetries:    5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.License.HeartbeatTTLHours > 0 {
			cfg.HeartbeatTTL = time.Duration(f.License.HeartbeatTTLHours) * time.Hour
		}
		if f.Cache.PointTTLSeconds > 0 {
			cfg.CachePointTTL = time.Duration(f.Cache.PointTTLSeconds) * time.Second
		}
		if f.Cache.ListTTLSeconds > 0 {
			cfg.CacheListTTL = time.Duration(f.Cache.ListTTLSeconds) * time.Second
		}
		if f.Cache.OpTimeoutMillis > 0 {
			cfg.CacheOpTimeout = time.Duration(f.Cache.OpTimeoutMillis) * time.Millisecond
		}
		if f.Cache.InvalidationChannel != "" {
			cfg.InvalidationChannel = f.Cache.InvalidationChannel
		}
		if f.Audit.ChannelPrefix != "" {
			cfg.AuditChannelPrefix = f.Audit.ChannelPrefix
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.InvalidationChannel = envOrDefault("CACHE_INVALIDATION_CHANNEL", cfg.InvalidationChannel)
	cfg.AuditChannelPrefix = envOrDefault("AUDIT_CHANNEL_PREFIX", cfg.AuditChannelPrefix)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.HeartbeatTTL = time.Duration(envInt("HEARTBEAT_TTL_HOURS", int(cfg.HeartbeatTTL.Hours()))) * time.Hour
	cfg.CachePointTTL = time.Duration(envInt("CACHE_POINT_TTL_SECONDS", int(cfg.CachePointTTL.Seconds()))) * time.Second
	cfg.CacheListTTL = time.Duration(envInt("CACHE_LIST_TTL_SECONDS", int(cfg.CacheListTTL.Seconds()))) * time.Second
	cfg.CacheOpTimeout = time.Duration(envInt("CACHE_OP_TIMEOUT_MILLIS", int(cfg.CacheOpTimeout.Milliseconds()))) * time.Millisecond
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
