// Rate limiting with a fixed-window counter held in memory. Per-instance
// limits only; a fleet behind a load balancer multiplies them by the
// instance count.
package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
)

// RateLimitConfig tunes one limiter instance.
type RateLimitConfig struct {
	// Limit is the number of requests allowed per window.
	Limit int

	// Window is the counting window.
	Window time.Duration

	// KeyFunc picks the bucket key. Defaults to the client IP.
	KeyFunc func(*gin.Context) string

	// OnLimitReached runs before the 429 is written.
	OnLimitReached func(*gin.Context)
}

// DefaultRateLimitConfig allows 100 requests per minute per client IP.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Limit:  100,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
		OnLimitReached: nil,
	}
}

type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  *RateLimitConfig
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(config *RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		config:  config,
	}

	go rl.cleanup()

	return rl
}

// allow reports whether the request fits in the window, with the tokens
// left and the time until the window resets.
func (rl *rateLimiter) allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.buckets[key]

	if !exists {
		rl.buckets[key] = &bucket{
			tokens:    rl.config.Limit - 1,
			lastReset: now,
		}
		return true, rl.config.Limit - 1, rl.config.Window
	}

	if now.Sub(b.lastReset) >= rl.config.Window {
		b.tokens = rl.config.Limit - 1
		b.lastReset = now
		return true, b.tokens, rl.config.Window
	}

	if b.tokens <= 0 {
		retryAfter := rl.config.Window - now.Sub(b.lastReset)
		return false, 0, retryAfter
	}

	b.tokens--
	retryAfter := rl.config.Window - now.Sub(b.lastReset)
	return true, b.tokens, retryAfter
}

// cleanup evicts buckets idle for two windows.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.Window * 2)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, b := range rl.buckets {
			if now.Sub(b.lastReset) > rl.config.Window*2 {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects requests over the limit with 429 and the standard
// degradation envelope (RATE_LIMITED).
//
// Headers:
//   - X-RateLimit-Limit: requests allowed per window
//   - X-RateLimit-Remaining: requests left in this window
//   - X-RateLimit-Reset: window reset time (Unix timestamp)
//   - Retry-After: seconds until reset (on 429)
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	limiter := newRateLimiter(config)

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		allowed, remaining, retryAfter := limiter.allow(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))

		if !allowed {
			retrySeconds := int(retryAfter.Seconds())
			if retrySeconds < 1 {
				retrySeconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(retrySeconds))

			if config.OnLimitReached != nil {
				config.OnLimitReached(c)
			}

			common.TooManyRequestsResponse(c, retrySeconds)
			c.Abort()
			return
		}

		c.Next()
	}
}

// FinancialOpsRateLimit is the tighter limit for the money-moving routes.
// Keyed by client IP and target wallet, so one hot wallet cannot starve
// unrelated traffic from the same address.
func FinancialOpsRateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 30
	}
	return RateLimit(&RateLimitConfig{
		Limit:  perMinute,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			if walletID := c.Param("id"); walletID != "" {
				return c.ClientIP() + ":wallet:" + walletID
			}
			return c.ClientIP()
		},
	})
}
