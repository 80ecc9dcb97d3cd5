package redis

import (
	"context"
	"strings"
	"time"

	"uplus-loyalty/internal/infra/metrics"
)

// AttemptLimiter counts attempts per key in a fixed window. The window starts
// at the first attempt; a successful attempt can clear it with Reset.
type AttemptLimiter struct {
	client RedisClient
}

func NewAttemptLimiter(client RedisClient) *AttemptLimiter {
	return &AttemptLimiter{client: client}
}

// Allow records one attempt and reports whether it is within limit.
func (l *AttemptLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := l.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, window); err != nil {
			// a counter without TTL would lock the caller out for good
			_ = l.client.Del(ctx, key)
			return false, err
		}
	}
	if n > int64(limit) {
		metrics.IncThrottled(throttleScope(key))
		return false, nil
	}
	return true, nil
}

// Reset forgets the attempts recorded under key.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, key)
}

const signInPrefix = "attempts:sign_in:"

// SignInKey scopes sign-in attempts to the normalized email.
func SignInKey(email string) string {
	return signInPrefix + strings.ToLower(strings.TrimSpace(email))
}

func throttleScope(key string) string {
	if strings.HasPrefix(key, signInPrefix) {
		return "sign_in"
	}
	return "other"
}
