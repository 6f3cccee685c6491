package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/projectshelf/internal/metrics"
)

const rateLimitKeyPrefix = "projectshelf:rl"

// RateLimiter is a fixed-window request counter kept in Redis, shared by
// every server instance pointing at the same Redis.
//
// A nil client disables limiting. When Redis is unreachable the limiter fails
// open: the request is allowed and the failure is logged and counted.
type RateLimiter struct {
	rdb     *redis.Client
	limit   int
	window  time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration, m *metrics.Metrics, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, metrics: m, logger: logger}
}

// Allow counts one hit for id in bucket and reports whether it is within the
// limit. The second value is the time left in the current window.
func (l *RateLimiter) Allow(ctx context.Context, bucket, id string) (bool, time.Duration, error) {
	if l.rdb == nil || l.limit <= 0 {
		return true, 0, nil
	}

	key := fmt.Sprintf("%s:%s:%s", rateLimitKeyPrefix, bucket, id)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return true, 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	if count <= int64(l.limit) {
		return true, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	return false, ttl, nil
}

// Limit returns middleware that applies the limiter per client IP under
// bucket. Requests over the limit get 429 with a Retry-After header.
func (l *RateLimiter) Limit(bucket string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retry, err := l.Allow(r.Context(), bucket, clientIP(r))
			if err != nil {
				l.metrics.RedisError("ratelimit")
				l.logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("bucket", bucket),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				l.metrics.RateLimited(bucket)
				seconds := int(retry.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "rate_limited",
					"message": "Too many requests, please try again later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already replaced it with the forwarded address when one is present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
