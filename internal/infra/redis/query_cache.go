package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/metrics"
)

var _ repository.QueryCache = (*QueryCache)(nil)

// QueryCache stores JSON-encoded query results. Keys are namespaced by
// prefix so several deployments can share one Redis database.
type QueryCache struct {
	client RedisClient
	prefix string
	log    *zerolog.Logger
}

func NewQueryCache(client RedisClient, prefix string, logger *zerolog.Logger) *QueryCache {
	return &QueryCache{client: client, prefix: prefix, log: logger}
}

func (c *QueryCache) Get(ctx context.Context, key string, dst any) error {
	val, err := c.client.Get(ctx, c.prefix+key)
	if errors.Is(err, redis.Nil) {
		metrics.IncCacheRequest(cacheName(key), "miss")
		return domain.ErrCacheMiss
	}
	if err != nil {
		metrics.IncCacheRequest(cacheName(key), "error")
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		_ = c.client.Del(ctx, c.prefix+key)
		metrics.IncCacheRequest(cacheName(key), "miss")
		return domain.ErrCacheMiss
	}
	metrics.IncCacheRequest(cacheName(key), "hit")
	return nil
}

func (c *QueryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.prefix+key, b, ttl)
}

func (c *QueryCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, full...); err != nil {
		return err
	}
	for _, k := range keys {
		metrics.IncCacheInvalidation(cacheName(k))
	}
	return nil
}

// cacheName is the key segment before the first colon, used as a metric label.
func cacheName(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
