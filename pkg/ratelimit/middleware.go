package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// Config holds rate limiting configuration
type Config struct {
	PerSecond float64
	Burst     int

	// BucketTTL is how long to keep inactive buckets in memory
	BucketTTL time.Duration

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// Middleware limits requests per client IP
type Middleware struct {
	config  Config
	limiter *RateLimiter
}

// NewMiddleware creates a new per-IP rate limiting middleware
func NewMiddleware(config Config) *Middleware {
	if config.BucketTTL == 0 {
		config.BucketTTL = time.Hour
	}
	return &Middleware{
		config:  config,
		limiter: NewRateLimiter(config.PerSecond, config.Burst, config.BucketTTL),
	}
}

// Limiter exposes the underlying limiter, for cleanup and stats
func (m *Middleware) Limiter() *RateLimiter {
	return m.limiter
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.clientIP(r)
		if !m.limiter.Allow(ip) {
			m.rateLimitExceeded(w, r, ip)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, ip string) {
	slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path, "method", r.Method)

	retryAfter := 1
	if m.config.PerSecond > 0 {
		retryAfter = int(math.Ceil(1 / m.config.PerSecond))
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, map[string]string{
		"error":             apperrors.OAuthTemporarilyUnavailable,
		"error_description": "too many requests, please retry later",
	})
}

// clientIP extracts the client IP address from the request
func (m *Middleware) clientIP(r *http.Request) string {
	if m.config.TrustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
