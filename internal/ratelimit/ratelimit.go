// Package ratelimit caps generation requests per client with a fixed window
// counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config defines configuration for rate limiting.
type Config struct {
	// Window is the time window for rate limiting.
	Window time.Duration
	// Limit is the maximum number of requests allowed in the window.
	Limit int
	// KeyPrefix namespaces the Redis keys.
	KeyPrefix string
}

// Limiter counts requests per key in Redis.
type Limiter struct {
	redis  redis.Cmdable
	config Config
	log    *zap.Logger
	now    func() time.Time
}

// New creates a Limiter. A zero window defaults to one hour.
func New(client redis.Cmdable, config Config, log *zap.Logger) *Limiter {
	if config.Window <= 0 {
		config.Window = time.Hour
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit:generate"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{redis: client, config: config, log: log, now: time.Now}
}

// NewFromURL connects to the Redis server at url and checks it is reachable.
func NewFromURL(ctx context.Context, url string, config Config, log *zap.Logger) (*Limiter, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return New(client, config, log), client, nil
}

// Allow records one request for key.
// Returns: allowed, remaining requests, reset time, error.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	windowStart := l.now().Truncate(l.config.Window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.config.KeyPrefix, key, windowStart.Unix())

	pipe := l.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incr.Val())
	remaining := l.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.config.Limit, remaining, windowStart.Add(l.config.Window), nil
}

// Middleware limits requests per client IP. Redis failures let the request through.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, reset, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.log.Warn("rate limit check failed", zap.String("client_ip", c.ClientIP()), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(reset).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"kind":    "rate_limited",
				"error":   fmt.Sprintf("rate limit of %d requests per %v exceeded", l.config.Limit, l.config.Window),
			})
			return
		}
		c.Next()
	}
}
