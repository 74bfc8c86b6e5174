package ratelimit

import "context"

// RateLimiter throttles calls per key, such as a client IP or an upstream API.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
