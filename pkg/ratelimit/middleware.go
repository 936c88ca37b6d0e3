package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tendant/simple-access/pkg/config"
	"github.com/tendant/simple-access/pkg/device"
	apperrors "github.com/tendant/simple-access/pkg/errors"
)

// DefaultBucketTTL is how long an idle client bucket is kept.
const DefaultBucketTTL = time.Hour

// Middleware throttles requests per client IP.
type Middleware struct {
	limiter *KeyedLimiter
	perMin  int
}

// NewMiddleware builds a per-IP limiter from cfg.
func NewMiddleware(cfg config.RateLimitConfig) *Middleware {
	return &Middleware{
		limiter: NewKeyedLimiter(cfg.PerMinute, cfg.Burst, DefaultBucketTTL),
		perMin:  cfg.PerMinute,
	}
}

// Limiter exposes the underlying buckets, for the cleanup loop.
func (m *Middleware) Limiter() *KeyedLimiter {
	return m.limiter
}

// Handler rejects requests over the limit with 429 RATE_LIMITED and a
// Retry-After header.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := device.ClientIP(r)
		if ip != "" && !m.limiter.Allow(ip) {
			wait := m.limiter.RetryAfter(ip)
			slog.Warn("Rate limit exceeded", "ip", ip, "method", r.Method, "path", r.URL.Path)

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			apperrors.WriteJSON(w, r, apperrors.New(apperrors.ErrCodeRateLimited, "too many requests, try again later"))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.perMin))
		next.ServeHTTP(w, r)
	})
}
