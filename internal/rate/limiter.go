// Package rate enforces fixed-window login throttles with Redis counters:
// INCR plus a conditional EXPIRE on the window's first hit.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when an identifier has exhausted its
	// attempt budget for the current window.
	ErrRateLimited = errors.New("rate limited")

	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// Limiter throttles login attempts per identifier.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	return &Limiter{redis: redisClient, config: cfg}
}

func loginKey(identifier string) string {
	return "al:" + identifier
}

// Check reports whether the identifier is within its attempt budget.
func (l *Limiter) Check(ctx context.Context, identifier string) error {
	count, err := l.redis.Get(ctx, loginKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Increment records a failed attempt. The window TTL is set when the
// counter is first created and never extended, giving fixed-window
// semantics.
func (l *Limiter) Increment(ctx context.Context, identifier string) error {
	key := loginKey(identifier)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the identifier's counter after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, loginKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
