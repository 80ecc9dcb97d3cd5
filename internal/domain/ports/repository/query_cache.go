package repository

import (
	"context"
	"time"
)

// QueryCache stores query results under string keys. Get returns
// domain.ErrCacheMiss when the key is absent.
type QueryCache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}
