// Package redis implements the cache store adapter: key-value caching with
// TTLs, counters, the trending sorted set and pub/sub fan-out. The cache is a
// soft dependency; its connect path retries with bounded exponential backoff
// so transient unavailability does not cascade into startup failure.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/store"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

const storeName = "redis"

var _ store.Adapter = (*Adapter)(nil)

// Adapter provides Redis connectivity with connection pooling.
type Adapter struct {
	client *redis.Client
	logger logger.Logger
	config Config
}

// Config holds Redis connection configuration.
type Config struct {
	URL              string
	MaxConns         int
	OperationTimeout time.Duration

	// ConnectRetries bounds the number of ping attempts at startup.
	ConnectRetries int
	// ConnectBackoff is the initial retry delay; it doubles per attempt.
	ConnectBackoff time.Duration
	// BackoffCeiling caps the retry delay.
	BackoffCeiling time.Duration
}

// ScoredMember is one sorted-set entry with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// NewAdapter creates a Redis adapter and verifies connectivity, retrying
// with exponential backoff up to the configured bounds.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = 1
	}
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = 250 * time.Millisecond
	}
	if cfg.BackoffCeiling < cfg.ConnectBackoff {
		cfg.BackoffCeiling = 5 * time.Second
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConns
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = cfg.OperationTimeout
	opts.WriteTimeout = cfg.OperationTimeout

	client := redis.NewClient(opts)

	if err := pingWithBackoff(client, cfg, log); err != nil {
		client.Close()
		return nil, storeerr.NewConnectionError(storeName, err)
	}

	log.Info("Redis connection established",
		"max_conns", cfg.MaxConns,
		"operation_timeout", cfg.OperationTimeout,
	)

	return &Adapter{
		client: client,
		logger: log,
		config: cfg,
	}, nil
}

func pingWithBackoff(client *redis.Client, cfg Config, log logger.Logger) error {
	delay := cfg.ConnectBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return nil
		}

		if attempt == cfg.ConnectRetries {
			break
		}

		log.Warn("Redis ping failed, retrying",
			"attempt", attempt,
			"retry_in", delay,
			"error", lastErr,
		)
		time.Sleep(delay)

		delay *= 2
		if delay > cfg.BackoffCeiling {
			delay = cfg.BackoffCeiling
		}
	}

	return fmt.Errorf("redis unreachable after %d attempts: %w", cfg.ConnectRetries, lastErr)
}

// Client returns the underlying *redis.Client for direct access when needed.
func (a *Adapter) Client() *redis.Client {
	return a.client
}

// Ping verifies the Redis connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// Get retrieves a value by key. A missing key surfaces as
// storeerr.ErrCacheMiss, which read paths treat as absence.
func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	val, err := a.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storeerr.Wrap(storeName, "get", storeerr.ErrCacheMiss)
	}
	if err != nil {
		return "", storeerr.Wrap(storeName, "get", err)
	}
	return val, nil
}

// SetWithTTL stores a key-value pair with expiration.
func (a *Adapter) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return storeerr.Wrap(storeName, "set", a.client.Set(ctx, key, value, ttl).Err())
}

// Delete removes keys; deleting missing keys is a no-op.
func (a *Adapter) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return storeerr.Wrap(storeName, "del", a.client.Del(ctx, keys...).Err())
}

// DeleteByPattern removes all keys matching a glob pattern using SCAN, so
// cache invalidation never blocks the server the way KEYS would.
func (a *Adapter) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := a.client.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return storeerr.Wrap(storeName, "scan", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return storeerr.Wrap(storeName, "del_pattern", a.client.Del(ctx, keys...).Err())
}

// Incr atomically increments a counter key.
func (a *Adapter) Incr(ctx context.Context, key string) (int64, error) {
	val, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, storeerr.Wrap(storeName, "incr", err)
	}
	return val, nil
}

// SortedSetAdd adds a member with a score to a sorted set.
func (a *Adapter) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	err := a.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	return storeerr.Wrap(storeName, "zadd", err)
}

// SortedSetTopK returns the highest-scored members of a sorted set.
func (a *Adapter) SortedSetTopK(ctx context.Context, key string, k int64) ([]ScoredMember, error) {
	if k <= 0 {
		return []ScoredMember{}, nil
	}

	zs, err := a.client.ZRevRangeWithScores(ctx, key, 0, k-1).Result()
	if err != nil {
		return nil, storeerr.Wrap(storeName, "zrevrange", err)
	}

	members := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		members = append(members, ScoredMember{Member: member, Score: z.Score})
	}
	return members, nil
}

// Publish sends a payload to a pub/sub channel.
func (a *Adapter) Publish(ctx context.Context, channel, payload string) error {
	return storeerr.Wrap(storeName, "publish", a.client.Publish(ctx, channel, payload).Err())
}

// Subscribe subscribes to a pub/sub channel. The caller owns the returned
// subscription and must Close it.
func (a *Adapter) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return a.client.Subscribe(ctx, channel)
}

// HealthCheck verifies the Redis connection is healthy with a timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := a.client.Ping(ctx).Err(); err != nil {
		a.logger.Error("Redis health check failed", "error", err)
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}

// Close gracefully closes the Redis connection.
func (a *Adapter) Close() error {
	a.logger.Info("closing Redis connection")

	if err := a.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}

	return nil
}
