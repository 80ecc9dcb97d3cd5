package usecase

import (
	"context"
	"sync"

	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/logging"

	"github.com/rs/zerolog"
)

// TierCatalog holds the tier list sorted ascending by min_points.
// It is loaded once per session and answers progression queries locally.
type TierCatalog struct {
	repo repository.TierRepository
	log  *zerolog.Logger

	mu     sync.RWMutex
	tiers  []*model.Tier
	loaded bool
}

func NewTierCatalog(repo repository.TierRepository, logger *zerolog.Logger) *TierCatalog {
	return &TierCatalog{repo: repo, log: logger}
}

// Load fetches every tier. Errors are logged and swallowed; the catalog keeps
// whatever it held before (empty on first load).
func (c *TierCatalog) Load(ctx context.Context) {
	defer logging.TraceDuration(c.log, "TierCatalog.Load")()

	tiers, err := c.repo.ListAll(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("component", "tier_catalog").Msg("load tiers failed")
		return
	}
	sorted := make([]*model.Tier, 0, len(tiers))
	for _, t := range tiers {
		if t != nil {
			sorted = append(sorted, t)
		}
	}
	model.SortTiers(sorted)

	c.mu.Lock()
	c.tiers = sorted
	c.loaded = true
	c.mu.Unlock()
}

// EnsureLoaded loads the catalog only if no load has succeeded yet.
func (c *TierCatalog) EnsureLoaded(ctx context.Context) {
	if c.Loaded() {
		return
	}
	c.Load(ctx)
}

func (c *TierCatalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Tiers returns a copy of the sorted catalog.
func (c *TierCatalog) Tiers() []*model.Tier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// CurrentTier returns the tier with the greatest min_points <= points, or nil.
// With duplicate thresholds the first one in catalog order wins.
func (c *TierCatalog) CurrentTier(points int64) *model.Tier {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var cur *model.Tier
	for _, t := range c.tiers {
		if t.MinPoints > points {
			break
		}
		if cur == nil || t.MinPoints > cur.MinPoints {
			cur = t
		}
	}
	return cur
}

// NextTier returns the tier with the smallest min_points > points, or nil.
func (c *TierCatalog) NextTier(points int64) *model.Tier {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.tiers {
		if t.MinPoints > points {
			return t
		}
	}
	return nil
}

func (c *TierCatalog) PointsToNextTier(points int64) int64 {
	next := c.NextTier(points)
	if next == nil {
		return 0
	}
	if d := next.MinPoints - points; d > 0 {
		return d
	}
	return 0
}
