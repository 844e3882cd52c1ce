// Package ratelimit provides HTTP rate limiting middleware using
// ulule/limiter with an in-memory store.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/dzerik/oauth-service/pkg/logger"
)

// Config holds rate limiting configuration.
type Config struct {
	// Rate is the limit in limiter notation, e.g. "60-M" for sixty
	// requests per minute.
	Rate string
	// TrustForwardedFor trusts X-Forwarded-For for the client key.
	TrustForwardedFor bool
	// ExcludePaths are path prefixes exempt from limiting.
	ExcludePaths []string
}

// Limiter applies a per-client request rate limit to the auth endpoints.
type Limiter struct {
	cfg      Config
	instance *limiter.Limiter
}

// NewLimiter creates a rate limiter from configuration.
func NewLimiter(cfg Config) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, err
	}
	return &Limiter{
		cfg:      cfg,
		instance: limiter.New(memory.NewStore(), rate),
	}, nil
}

// Middleware returns an HTTP middleware that applies the rate limit.
// Limiter store errors fail closed.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.isExcluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			limitContext, err := l.instance.Get(r.Context(), l.clientKey(r))
			if err != nil {
				logger.Error("rate limiter error", zap.Error(err))
				http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limitContext.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(limitContext.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limitContext.Reset, 10))

			if limitContext.Reached {
				logger.Warn("rate limit exceeded",
					zap.String("path", r.URL.Path),
					zap.Int64("limit", limitContext.Limit),
				)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey determines the client identifier for rate limiting.
func (l *Limiter) clientKey(r *http.Request) string {
	if l.cfg.TrustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func (l *Limiter) isExcluded(path string) bool {
	for _, excluded := range l.cfg.ExcludePaths {
		if strings.HasPrefix(path, excluded) {
			return true
		}
	}
	return false
}
