// Package rate implements a Redis-backed token bucket so request limits
// hold across API replicas.
package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter is a token bucket keyed by caller identity. Buckets refill at
// rps tokens per second up to burst.
type Limiter struct {
	client *redis.Client
	logger *zap.Logger
	rps    int
	burst  int
}

func NewLimiter(client *redis.Client, logger *zap.Logger, rps, burst int) *Limiter {
	return &Limiter{
		client: client,
		logger: logger,
		rps:    rps,
		burst:  burst,
	}
}

// Allow consumes one token for key. When the bucket is empty it returns
// false plus how long the caller should wait before retrying.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := "rate:" + key
	now := time.Now()
	windowStart := now.Truncate(time.Second)

	tokens := l.burst

	val, err := l.client.Get(ctx, redisKey).Result()
	if err != nil && err != redis.Nil {
		return false, 0, err
	}
	if err == nil {
		// stored as "tokens:unix"
		var lastRefillUnix int64
		if _, scanErr := fmt.Sscanf(val, "%d:%d", &tokens, &lastRefillUnix); scanErr == nil {
			elapsed := windowStart.Sub(time.Unix(lastRefillUnix, 0))
			tokens = min(tokens+int(elapsed.Seconds())*l.rps, l.burst)
		} else {
			tokens = l.burst
		}
	}

	if tokens <= 0 {
		retryAfter := time.Second - time.Duration(now.Nanosecond())
		return false, retryAfter, nil
	}

	tokens--
	stored := fmt.Sprintf("%d:%d", tokens, windowStart.Unix())
	// TTL reclaims buckets for idle callers
	if err := l.client.Set(ctx, redisKey, stored, time.Minute).Err(); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

// Reset clears the bucket for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, "rate:"+key).Err()
}
