package transport

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outbound-shipments/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimit rejects requests with 429 once the client IP exceeds its budget.
// A limiter failure lets the request through.
func RateLimit(limiter ratelimit.RateLimiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		allowed, err := limiter.Allow(c.UserContext(), "api:"+c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("ip", c.IP()), zap.Error(err))
			return c.Next()
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, "1")
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		return c.Next()
	}
}
