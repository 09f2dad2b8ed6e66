package pkg

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DistributedLimiter guards the mutation endpoints. A local token bucket
// rejects bursts cheaply before Redis is consulted; the Redis counter then
// enforces the shared ceiling across every API replica.
type DistributedLimiter struct {
	local  *rate.Limiter
	client *redis.Client
	key    string
	ttl    time.Duration // counter expiry window
	logger *zap.Logger
}

// NewDistributedLimiter builds a limiter keyed on key. A globalRate of 0
// disables limiting entirely.
func NewDistributedLimiter(client *redis.Client, key string, globalRate, burst int, ttl time.Duration, logger *zap.Logger) *DistributedLimiter {
	var local *rate.Limiter
	if globalRate > 0 {
		local = rate.NewLimiter(rate.Limit(globalRate), burst)
	}
	return &DistributedLimiter{
		local:  local,
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// Allow reports whether the caller may proceed. When Redis is unreachable
// the local bucket alone decides; a degraded limiter must not take the
// mutation path down with it.
func (d *DistributedLimiter) Allow(ctx context.Context) bool {
	if d.local == nil {
		return true
	}
	if !d.local.Allow() {
		return false
	}

	pipe := d.client.Pipeline()
	incr := pipe.Incr(ctx, d.key)
	pipe.Expire(ctx, d.key, d.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.Error("rate_limit_redis_unavailable", zap.Error(err))
		return true
	}

	if count := incr.Val(); count > int64(d.local.Burst()) {
		d.logger.Warn("global_rate_limit_exceeded",
			zap.String("key", d.key),
			zap.Int64("count", count))
		return false
	}
	return true
}
