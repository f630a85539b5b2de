package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces trustlane keys in a shared Redis.
const DefaultRedisPrefix = "trustlane:"

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	// URL is a redis:// or rediss:// URL. It takes precedence over Addr.
	URL      string
	Addr     string
	Password string
	DB       int
	Prefix   string
	Backoff  Backoff // for the initial ping
}

// RedisCache stores entries in Redis with native key expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects and pings the server, retrying transient failures.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	var ropts *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ropts = parsed
	} else {
		ropts = &redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	backoff := opts.Backoff
	if backoff.Attempts == 0 {
		backoff = DefaultBackoff
	}

	client := redis.NewClient(ropts)
	err := backoff.Retry(ctx, func() error {
		return Retryable(client.Ping(ctx).Err())
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis %s: %w", ErrUnavailable, ropts.Addr, err)
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error { return c.client.Close() }

var _ Cache = (*RedisCache)(nil)
