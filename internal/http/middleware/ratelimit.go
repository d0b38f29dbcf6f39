// Package middleware contains shared Gin middleware used by the HTTP layer.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// bucketTTL is how long an idle per-identity bucket survives before the
	// opportunistic sweep may evict it.
	bucketTTL = 10 * time.Minute

	// gcEvery is the number of bucket lookups between sweeps.
	gcEvery = 5000
)

// keyFunc maps a request to the identity that owns its token bucket. The
// returned key must be stable for the duration of the request.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the authenticated user when one is present
// and by client IP otherwise. The prefixes keep the two namespaces from
// colliding ("user:u123" vs "ip:203.0.113.9").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token-bucket limiter with one bucket per
// identity. Buckets are created on demand; idle ones are swept during lookups
// so the map stays bounded. Safe for concurrent use.
//
// Being process-local, it protects a single instance from abuse and runaway
// generation cost. A horizontally scaled deployment that needs a global limit
// wants a shared store instead.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with the
// given burst capacity. A burst below 1 is coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		ttl:     bucketTTL,
		buckets: make(map[string]*bucket),
	}
}

// bucketFor returns the limiter owned by key, creating it if absent. Every
// gcEvery lookups it sweeps idle buckets first, before touching the requested
// entry, so a stale bucket is evictable even when it is the one being fetched.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= gcEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as a
// replay of an already-completed attempt. Replays are served from storage and
// must not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns middleware charging one token per request. Over-limit
// requests get a 429 with the standard error envelope and Retry-After.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return rl.HandlerN(1)
}

// HandlerN charges n tokens per request, so expensive routes (the generation
// pipeline) drain the shared per-identity bucket faster than cheap reads.
// n below 1 is coerced to 1.
func (rl *RateLimiter) HandlerN(n int) gin.HandlerFunc {
	if n < 1 {
		n = 1
	}
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.bucketFor(rl.keyFn(c))
		if lim.AllowN(time.Now(), n) {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
