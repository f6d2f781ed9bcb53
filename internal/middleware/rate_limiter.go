package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heartline/backend/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RateLimiter limits requests per client IP. It fails open when Redis is
// unavailable.
func RateLimiter(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s", c.ClientIP())
		count, ttl, err := hitWindow(c.Request.Context(), redisClient, key, cfg.RateLimitDuration)
		if err != nil {
			log.WithError(err).Warn("Rate limiter unavailable")
			c.Next()
			return
		}

		remaining := cfg.RateLimitRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RateLimitRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > cfg.RateLimitRequests {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":          false,
				"error":       "Too many requests",
				"retry_after": int(ttl.Seconds()),
			})
			return
		}

		c.Next()
	}
}

// VerificationStartLimit caps how many codes one client IP may request per
// window, on top of the global limiter.
func VerificationStartLimit(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.VerifyStartLimit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("verify_start:%s", c.ClientIP())
		count, ttl, err := hitWindow(c.Request.Context(), redisClient, key, cfg.VerifyStartWindow)
		if err != nil {
			log.WithError(err).Warn("Verification start limiter unavailable")
			c.Next()
			return
		}

		if int(count) > cfg.VerifyStartLimit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":                  false,
				"error":               "Too many verification requests. Please try again later.",
				"retry_after_minutes": int(math.Ceil(ttl.Minutes())),
			})
			return
		}

		c.Next()
	}
}

var errNoRedis = errors.New("redis client not configured")

// hitWindow counts one hit against key in a fixed window and returns the
// count so far and the time left in the window. The window starts on the
// first hit; plain EXPIRE keeps this working on Redis versions before 7.
func hitWindow(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	if rdb == nil {
		return 0, 0, errNoRedis
	}

	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
	}

	left, err := rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if left < 0 {
		// Key lost its expiry (first-hit EXPIRE failed); never let it live forever.
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		left = window
	}
	return count, left, nil
}
