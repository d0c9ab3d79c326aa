package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_Allow(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	rl := NewRateLimiter(1, 5, time.Minute)
	rl.now = clock.Now

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("ip1"), "request %d within burst", i+1)
	}
	assert.False(t, rl.Allow("ip1"), "burst exhausted")
	assert.True(t, rl.Allow("ip2"), "keys are independent")

	clock.Advance(2 * time.Second)
	assert.True(t, rl.Allow("ip1"))
	assert.True(t, rl.Allow("ip1"))
	assert.False(t, rl.Allow("ip1"))
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, 0)
	rl.Allow("k")
	rl.Allow("k")
	assert.False(t, rl.Allow("k"))

	rl.Reset("k")
	assert.True(t, rl.Allow("k"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	rl := NewRateLimiter(1, 1, time.Minute)
	rl.now = clock.Now

	rl.Allow("old")
	clock.Advance(2 * time.Minute)
	rl.Allow("fresh")

	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.GetStats().ActiveBuckets)
}

func TestMiddleware(t *testing.T) {
	m := NewMiddleware(Config{PerSecond: 0.5, Burst: 2})
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(remote, xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/token", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1111", "").Code)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:2222", "").Code)

	rec := send("10.0.0.1:3333", "1.2.3.4")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "proxy headers are ignored unless trusted")
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "temporarily_unavailable")

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1111", "").Code)
}

func TestMiddlewareTrustedProxy(t *testing.T) {
	m := NewMiddleware(Config{PerSecond: 0.001, Burst: 1, TrustProxyHeaders: true})
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", m.clientIP(req))
}
