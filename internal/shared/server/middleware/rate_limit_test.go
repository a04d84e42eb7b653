package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 2, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d should be within burst", i+1)
		}
	}
	ok, wait := limiter.Allow("10.0.0.1")
	if ok {
		t.Fatalf("third request should be limited")
	}
	if wait <= 0 || wait > time.Second {
		t.Fatalf("unexpected wait %s", wait)
	}
	if ok, _ := limiter.Allow("10.0.0.2"); !ok {
		t.Fatalf("other clients have their own bucket")
	}

	now = now.Add(time.Second)
	if ok, _ := limiter.Allow("10.0.0.1"); !ok {
		t.Fatalf("expected a token after refill")
	}
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0, nil)
	for i := 0; i < 100; i++ {
		if ok, _ := limiter.Allow("k"); !ok {
			t.Fatalf("disabled limiter must allow everything")
		}
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1, func() time.Time { return now })

	r := gin.New()
	r.POST("/api/projects", RateLimit(limiter), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, httptest.NewRequest(http.MethodPost, "/api/projects", nil))
	if resp1.Code != http.StatusCreated {
		t.Fatalf("expected first request 201, got %d", resp1.Code)
	}

	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, httptest.NewRequest(http.MethodPost, "/api/projects", nil))
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if resp2.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", resp2.Header().Get("Retry-After"))
	}

	var payload map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "Too many requests" {
		t.Fatalf("unexpected error body: %v", payload)
	}
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1, func() time.Time { return now })

	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		t.Fatalf("SetTrustedProxies: %v", err)
	}
	r.POST("/api/projects", RateLimit(limiter), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
		req.RemoteAddr = "203.0.113.7:4321"
		req.Header.Set("X-Forwarded-For", "1.2.3."+strconv.Itoa(i))
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code == http.StatusCreated {
			allowed++
		}
	}
	if allowed != 1 {
		t.Fatalf("expected 1 allowed request, got %d", allowed)
	}
	if len(limiter.buckets) != 1 {
		t.Fatalf("expected one bucket, got %d", len(limiter.buckets))
	}
}

func TestRateLimitKeysBareRemoteAddr(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1, func() time.Time { return now })

	r := gin.New()
	r.POST("/api/projects", RateLimit(limiter), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	for _, tc := range []struct {
		remote string
		want   int
	}{
		{remote: "198.51.100.1", want: http.StatusCreated},
		{remote: "198.51.100.1", want: http.StatusTooManyRequests},
		{remote: "198.51.100.2", want: http.StatusCreated},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
		req.RemoteAddr = tc.remote
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("remote %s: expected %d, got %d", tc.remote, tc.want, resp.Code)
		}
	}
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		limiter.Allow("10.0.0." + strconv.Itoa(i))
	}
	if len(limiter.buckets) != 5 {
		t.Fatalf("expected 5 buckets, got %d", len(limiter.buckets))
	}

	now = now.Add(idleBucketTTL + time.Second)
	if ok, _ := limiter.Allow("10.0.0.9"); !ok {
		t.Fatalf("expected new client to be allowed")
	}
	if len(limiter.buckets) != 1 {
		t.Fatalf("expected idle buckets swept, got %d", len(limiter.buckets))
	}
}
