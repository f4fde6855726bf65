package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"linkshrink/pkg/logging"
	"linkshrink/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-IP limiter backed by Redis, shared
// across server instances. A Redis failure fails open: the redirect path is
// never blocked by an unavailable auxiliary service.
type RateLimiter struct {
	client *redis.Client
	logger *logging.Logger
	rate   int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, logger *logging.Logger, requestsPerWindow int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger,
		rate:   requestsPerWindow,
		window: window,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		key := "ratelimit:" + ip

		count, err := rl.client.Incr(r.Context(), key).Result()
		if err != nil {
			rl.logger.Warn(r.Context(), "rate limiter unavailable, failing open", "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.client.Expire(r.Context(), key, rl.window)
		}

		if count > int64(rl.rate) {
			metrics.RateLimitedTotal.Inc()
			rl.logger.Warn(r.Context(), "rate limit exceeded", "path", r.URL.Path)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.rate))
			w.Header().Set("X-RateLimit-Window", rl.window.String())
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the visitor address, preferring the first entry of
// X-Forwarded-For when a proxy sits in front.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
