package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/metrics"
	red "uplus-loyalty/internal/infra/redis"
)

var _ repository.TierRepository = (*tierRepoCacheDecorator)(nil)

const tiersCacheKey = "tiers:all"

type tierRepoCacheDecorator struct {
	inner repository.TierRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewTierRepoCacheDecorator(inner repository.TierRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.TierRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &tierRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func (d *tierRepoCacheDecorator) ListAll(ctx context.Context) ([]*model.Tier, error) {
	val, err := d.cache.Get(ctx, tiersCacheKey)
	if err == nil {
		var tiers []*model.Tier
		if json.Unmarshal([]byte(val), &tiers) == nil {
			metrics.IncCacheRequest("tier_list", "hit")
			return tiers, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("key", tiersCacheKey).Msg("tier cache read failed")
	}

	metrics.IncCacheRequest("tier_list", "miss")
	tiers, err := d.inner.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(tiers) > 0 {
		b, _ := json.Marshal(tiers)
		if err := d.cache.Set(ctx, tiersCacheKey, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Msg("tier cache write failed")
		}
	}
	return tiers, nil
}

// InvalidateTiers drops the cached catalog after the seeder rewrites tiers.
func InvalidateTiers(ctx context.Context, cache red.RedisClient) error {
	return cache.Del(ctx, tiersCacheKey)
}
