package strategy

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCounterTimeout = 100 * time.Millisecond
	DefaultCounterBackoff = 10 * time.Second
)

type RedisCounterOption func(*RedisCounter)

// WithCounterTimeout bounds each INCR. The client must be built with
// ContextTimeoutEnabled for the bound to apply to socket reads.
func WithCounterTimeout(d time.Duration) RedisCounterOption {
	return func(c *RedisCounter) { c.timeout = d }
}

// WithCounterBackoff sets how long the local counter is used after a Redis
// failure before Redis is tried again.
func WithCounterBackoff(d time.Duration) RedisCounterOption {
	return func(c *RedisCounter) { c.backoff = d }
}

// WithCounterClock replaces the time source, for tests.
func WithCounterClock(now func() time.Time) RedisCounterOption {
	return func(c *RedisCounter) { c.now = now }
}

// RedisCounter shares the rotation sequence between instances through an
// INCR on a single key. When Redis is unreachable it degrades to a local
// counter so the redirect path keeps rotating.
type RedisCounter struct {
	client  redis.UniversalClient
	key     string
	local   *LocalCounter
	logger  *slog.Logger
	timeout time.Duration
	backoff time.Duration
	now     func() time.Time

	// downUntil is a unix-nano deadline; zero while Redis is healthy.
	downUntil atomic.Int64
}

func NewRedisCounter(client redis.UniversalClient, key string, logger *slog.Logger, opts ...RedisCounterOption) *RedisCounter {
	c := &RedisCounter{
		client:  client,
		key:     key,
		local:   NewLocalCounter(),
		logger:  logger,
		timeout: DefaultCounterTimeout,
		backoff: DefaultCounterBackoff,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCounter) Next(ctx context.Context) (uint64, error) {
	if c.Degraded() {
		return c.local.Next(ctx)
	}

	ictx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.client.Incr(ictx, c.key).Result()
	if err != nil {
		c.downUntil.Store(c.now().Add(c.backoff).UnixNano())
		c.logger.Warn("rotation counter unavailable, using local counter",
			slog.String("key", c.key),
			slog.Duration("retry_in", c.backoff),
			slog.String("error", err.Error()))
		return c.local.Next(ctx)
	}

	c.downUntil.Store(0)
	return uint64(n - 1), nil
}

// Degraded reports whether the local counter is currently in use.
func (c *RedisCounter) Degraded() bool {
	until := c.downUntil.Load()
	return until != 0 && c.now().UnixNano() < until
}

func (c *RedisCounter) Reset(ctx context.Context) error {
	_ = c.local.Reset(ctx)
	return c.client.Del(ctx, c.key).Err()
}
