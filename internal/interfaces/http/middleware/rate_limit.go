// internal/interfaces/http/middleware/rate_limit.go
package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/interfaces/http/response"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

// RateLimitStore is the Redis surface the limiter uses
type RateLimitStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimit allows limit requests per client IP per minute window.
// If Redis is unavailable the request is let through.
func RateLimit(limit int, store RateLimitStore, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		window := now.Truncate(time.Minute)
		key := fmt.Sprintf("rate_limit:%s:%d", c.ClientIP(), window.Unix())

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		count, err := store.Incr(ctx, key).Result()
		if err != nil {
			logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			if err := store.Expire(ctx, key, time.Minute).Err(); err != nil {
				logger.WithError(err).WithField("key", key).Warn("Failed to set rate limit expiry")
			}
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		reset := window.Add(time.Minute)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(reset.Sub(now).Seconds())+1))
			response.Error(c, logger, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
			return
		}

		c.Next()
	}
}
