package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"carenote-server/pkg/response"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimitMiddleware counts requests per caller in fixed one-minute windows
// held in Redis. When Redis is unreachable requests are let through.
func RateLimitMiddleware(client *redis.Client, requestsPerMinute int, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestsPerMinute <= 0 || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			window := now.Unix() / 60
			key := fmt.Sprintf("ratelimit:%s:%d", clientKey(r), window)

			ctx := r.Context()
			pipe := client.TxPipeline()
			incr := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, time.Minute)
			if _, err := pipe.Exec(ctx); err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			count := incr.Val()
			remaining := int64(requestsPerMinute) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(requestsPerMinute) {
				retryAfter := 60 - now.Unix()%60
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				response.TooManyRequests(w, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey prefers the authenticated user and falls back to the remote IP.
func clientKey(r *http.Request) string {
	if userID := GetUserID(r); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
