package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, cfg), mr
}

func TestCheckAllowsFreshIdentifier(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{MaxAttempts: 3, Cooldown: time.Minute})
	require.NoError(t, limiter.Check(context.Background(), "alice"))
}

func TestIncrementUntilLimited(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Increment(ctx, "alice"))
	}
	require.ErrorIs(t, limiter.Check(ctx, "alice"), ErrRateLimited)
	require.ErrorIs(t, limiter.Increment(ctx, "alice"), ErrRateLimited)

	// Another identifier is unaffected.
	require.NoError(t, limiter.Check(ctx, "bob"))
}

func TestWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute})
	ctx := context.Background()

	require.NoError(t, limiter.Increment(ctx, "alice"))
	require.NoError(t, limiter.Increment(ctx, "alice"))
	require.ErrorIs(t, limiter.Check(ctx, "alice"), ErrRateLimited)

	mr.FastForward(2 * time.Minute)
	require.NoError(t, limiter.Check(ctx, "alice"))
}

func TestResetClearsCounter(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute})
	ctx := context.Background()

	require.NoError(t, limiter.Increment(ctx, "alice"))
	require.NoError(t, limiter.Increment(ctx, "alice"))
	require.NoError(t, limiter.Reset(ctx, "alice"))
	require.NoError(t, limiter.Check(ctx, "alice"))
}

func TestRedisDownIsDistinctFromLimited(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute})
	mr.Close()

	err := limiter.Check(context.Background(), "alice")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrRateLimited))
	require.ErrorIs(t, err, ErrRedisUnavailable)
}
