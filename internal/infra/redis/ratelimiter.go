package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outbound-shipments/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 100
	minWaitStep              = 5 * time.Millisecond
	window                   = time.Second
	rateLimitKeyPrefix       = "outbound_shipments:ratelimit"
)

// allowScript counts a hit in the current window and reports whether it fits.
// The window key expires on its own a second after first use.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a fixed one-second window limiter shared by every
// process pointed at the same redis. scope separates limiters that share a
// client, so "api" counts client IPs while "airtable" counts upstream calls.
type RedisRateLimiter struct {
	client      *goredis.Client
	scope       string
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, scope string, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, scope, int64(limitPerSec), time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	scope string,
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		return nil, fmt.Errorf("rate limit scope is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:      client,
		scope:       scope,
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return false, fmt.Errorf("rate limit key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := allowScript.Run(ctx, r.client, []string{r.windowKey(normalizedKey)}, r.limitPerSec, int(window/time.Second)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until key is allowed or ctx is done. A rejected call sleeps
// until the current window closes rather than polling inside it.
func (r *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		allowed, err := r.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, r.untilNextWindow()); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) windowKey(key string) string {
	return fmt.Sprintf("%s:%s:%s:%d", rateLimitKeyPrefix, r.scope, key, r.now().UTC().Unix())
}

func (r *RedisRateLimiter) untilNextWindow() time.Duration {
	now := r.now()
	d := now.Truncate(window).Add(window).Sub(now)
	if d < minWaitStep {
		return minWaitStep
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
