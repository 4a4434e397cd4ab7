package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-IP limiter backed by Redis. When
// Redis is unreachable the request is allowed through.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, prefix string) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

// Stricter rate limiter for auth endpoints
func NewAuthRateLimiter(redisClient *redis.Client) *RateLimiter {
	return NewRateLimiter(redisClient, 10, time.Minute, "ratelimit:auth")
}

// General API rate limiter
func NewAPIRateLimiter(redisClient *redis.Client) *RateLimiter {
	return NewRateLimiter(redisClient, 120, time.Minute, "ratelimit:api")
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	if rl == nil || rl.redis == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := fmt.Sprintf("%s:%s", rl.prefix, clientIP(r))

		allowed, remaining, reset, err := rl.isAllowed(r.Context(), key)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", reset-time.Now().Unix()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"Too many requests"}}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) isAllowed(ctx context.Context, key string) (allowed bool, remaining int, reset int64, err error) {
	windowEnd := time.Now().Truncate(rl.window).Add(rl.window)

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)

	if _, err = pipe.Exec(ctx); err != nil {
		return true, rl.limit, windowEnd.Unix(), err
	}

	count := int(incrCmd.Val())
	remaining = rl.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= rl.limit, remaining, windowEnd.Unix(), nil
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip, _, _ := net.SplitHostPort(xff)
		if ip == "" {
			ip = xff
		}
		return ip
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
