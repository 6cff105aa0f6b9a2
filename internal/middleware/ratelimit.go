// ratelimit.go implements per-client rate limiting of AI requests using a
// token bucket algorithm.
//
// How token bucket works:
// - Each client gets a "bucket" with N tokens (= the hourly limit)
// - Each request consumes 1 token
// - Tokens refill at a steady rate (limit tokens per hour)
// - If the bucket is empty, the request is rejected with 429 Too Many Requests
//
// Only the AI routes (generations and chat) are limited.
package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

// RateLimiter tracks request rates per client.
type RateLimiter struct {
	limit int // requests per hour; 0 disables limiting

	// Go Pattern: sync.Mutex guards the map; every access mutates a bucket.
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// bucket tracks the token state for a single client.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// allowResult contains the result of a rate limit check,
// including header information for the response.
type allowResult struct {
	allowed   bool
	remaining float64
}

// NewRateLimiter creates a rate limiter allowing perHour requests per client.
func NewRateLimiter(perHour int) *RateLimiter {
	rl := &RateLimiter{
		limit:   perHour,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	// Start background cleanup goroutine
	go rl.cleanup()

	return rl
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// RateLimit returns Gin middleware that enforces the per-client limit.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		result := rl.allow(ClientID(c))
		if !result.allowed {
			// Add headers even for rejected requests so clients know their limits
			c.Header("X-RateLimit-Limit", formatFloat(float64(rl.limit)))
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Rate limit exceeded. Try again later.",
				Code:    http.StatusTooManyRequests,
			})
			return
		}

		c.Header("X-RateLimit-Limit", formatFloat(float64(rl.limit)))
		c.Header("X-RateLimit-Remaining", formatFloat(result.remaining))

		c.Next()
	}
}

// ClientID identifies the caller for rate limiting: the token subject when
// authenticated, otherwise the client IP.
func ClientID(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	return "ip:" + c.ClientIP()
}

// allow checks if a request should be allowed, consuming a token if so.
func (rl *RateLimiter) allow(clientID string) allowResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	capacity := float64(rl.limit)
	now := rl.now()

	b, exists := rl.buckets[clientID]
	if !exists {
		b = &bucket{tokens: capacity, lastRefill: now}
		rl.buckets[clientID] = b
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * capacity / 3600.0
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefill = now

	if b.tokens < 1.0 {
		return allowResult{allowed: false}
	}

	b.tokens--
	return allowResult{allowed: true, remaining: b.tokens}
}

// cleanup periodically removes stale buckets to prevent memory leaks.
func (rl *RateLimiter) cleanup() {
	// Go Pattern: time.Ticker sends values at regular intervals.
	// Always defer ticker.Stop() to release resources.
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for id, b := range rl.buckets {
				// A bucket idle for an hour is full again; forget it.
				if now.Sub(b.lastRefill) > time.Hour {
					delete(rl.buckets, id)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// formatFloat converts a float to a string for headers.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.0f", f)
}
