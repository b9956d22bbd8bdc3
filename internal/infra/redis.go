package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

// RedisOption adjusts the parsed connection options.
type RedisOption func(*redis.Options)

// WithPoolSize caps the connection pool. The portal client only ever needs one or two
// connections for its token store.
func WithPoolSize(n int) RedisOption {
	return func(o *redis.Options) { o.PoolSize = n }
}

// NewRedisClient connects to the Redis server at url and pings it. Both the stub API
// (OTP codes, rate limits, idempotency) and the portal client (token store) use it.
func NewRedisClient(ctx context.Context, url string, opts ...RedisOption) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	for _, o := range opts {
		o(opt)
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}
	return client, nil
}
