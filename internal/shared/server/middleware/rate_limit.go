package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"portfolio-api/internal/shared/server/respond"
)

// idleBucketTTL is how long an untouched, refilled bucket is kept.
const idleBucketTTL = 10 * time.Minute

// RateLimiter hands out one token bucket per client key. Buckets idle for
// idleBucketTTL are swept on a later Allow call.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns a limiter allowing rps sustained requests with the
// given burst per key. A nil now uses time.Now.
func NewRateLimiter(rps float64, burst int, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		limit:     rate.Limit(rps),
		burst:     burst,
		now:       now,
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
	}
}

// Enabled reports whether the limiter restricts anything.
func (l *RateLimiter) Enabled() bool {
	return l != nil && l.limit > 0 && l.burst > 0
}

// Allow takes a token for key. When none is available it returns the wait
// until the next one.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= idleBucketTTL {
		l.sweep(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	lim := b.limiter
	l.mu.Unlock()

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay <= 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// sweep drops buckets that are idle and full again. Callers hold l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	stale := now.Add(-idleBucketTTL)
	for key, b := range l.buckets {
		if b.lastSeen.Before(stale) && b.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimit throttles requests per client IP. Attach it to write routes only.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}
		key := clientKey(c)
		allowed, retryAfter := limiter.Allow(key)
		if allowed {
			c.Next()
			return
		}
		retryAfterSeconds := int(math.Ceil(retryAfter.Seconds()))
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many requests")
	}
}

// clientKey is the IP the engine resolves for the caller. Forwarding headers
// only count when the engine trusts the peer. The Lambda adapter sets
// RemoteAddr to the bare source IP, which ClientIP cannot split.
func clientKey(c *gin.Context) string {
	if ip := strings.TrimSpace(c.ClientIP()); ip != "" {
		return ip
	}
	remote := strings.TrimSpace(c.Request.RemoteAddr)
	if ip := net.ParseIP(remote); ip != nil {
		return ip.String()
	}
	return remote
}
