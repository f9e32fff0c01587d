// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a process-local token-bucket rate limiter keyed by
// caller identity. Requests can carry different costs: a receipt validation
// ends in a paid round trip to a storefront and drains the bucket faster
// than a balance read.
//
// Spends answered from a stored Idempotency-Key record bypass the limiter.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by route template.",
	},
	[]string{"path"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// CostFunc returns how many tokens a request consumes. Values below 1 count
// as 1.
type CostFunc func(*gin.Context) int

// KeyByUserOrIP keys buckets by the caller's user id (upstream auth value or
// X-User-ID header) and falls back to the client IP.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return "user:" + h
		}
		return "ip:" + c.ClientIP()
	}
}

// CostByPathSuffix charges cost tokens to routes whose template ends with
// one of suffixes and 1 token to everything else.
func CostByPathSuffix(cost int, suffixes ...string) CostFunc {
	return func(c *gin.Context) int {
		path := c.FullPath()
		for _, s := range suffixes {
			if strings.HasSuffix(path, s) {
				return cost
			}
		}
		return 1
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Idle buckets are evicted
// during lookups once they have not been seen for ttl.
// Safe for concurrent use.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	keyFn  keyFunc
	costFn CostFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
	sweepN   uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		sweepN:   5000,
	}
}

// WithCost sets the per-request cost function and returns rl.
func (rl *RateLimiter) WithCost(fn CostFunc) *RateLimiter {
	rl.costFn = fn
	return rl
}

// getVisitor returns the bucket for key, creating it when absent. Every
// sweepN lookups idle buckets are evicted first, so a stale bucket is
// dropped even when it is the one being requested.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.sweepN {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

func (rl *RateLimiter) cost(c *gin.Context) int {
	n := 1
	if rl.costFn != nil {
		n = rl.costFn(c)
	}
	if n < 1 {
		n = 1
	}
	if n > rl.burst {
		n = rl.burst
	}
	return n
}

// retryAfter is the whole number of seconds until n tokens are available.
func (rl *RateLimiter) retryAfter(n int) int {
	if rl.rps <= 0 {
		return 60
	}
	secs := int(math.Ceil(float64(n) / float64(rl.rps)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// IsRateBypass reports whether IdempotencyValidator found a stored result
// for this request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limits. A rejected request gets 429, a Retry-After
// header and the API error envelope:
//
//	{"request_id": "...", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		n := rl.cost(c)
		if rl.getVisitor(rl.keyFn(c)).AllowN(time.Now(), n) {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		rateLimited.WithLabelValues(path).Inc()

		c.Header("Retry-After", strconv.Itoa(rl.retryAfter(n)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
