package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"uplus-loyalty/internal/config"
	pg "uplus-loyalty/internal/infra/db/postgres"
	"uplus-loyalty/internal/infra/logging"
	"uplus-loyalty/internal/infra/memory"
	red "uplus-loyalty/internal/infra/redis"
)

// seed loads the reference catalog (tiers, categories, rewards, brands,
// outlets, promotions) into Postgres. Re-running it updates rows in place.
func main() {
	cfgPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.ApplySchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema")
	}

	seeder := pg.NewCatalogSeeder(pool)
	catalog := memory.DemoCatalog(time.Now())

	for i := range catalog.Tiers {
		if err := seeder.SaveTier(ctx, &catalog.Tiers[i]); err != nil {
			logger.Fatal().Err(err).Msg("tiers")
		}
	}
	for i := range catalog.Categories {
		if err := seeder.SaveRewardCategory(ctx, &catalog.Categories[i]); err != nil {
			logger.Fatal().Err(err).Msg("reward categories")
		}
	}

	// Existing rewards keep their ids so vouchers already issued stay valid.
	byTitle, err := seeder.RewardIDsByTitle(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list rewards")
	}
	for i := range catalog.Rewards {
		r := &catalog.Rewards[i]
		r.ID = byTitle[r.Title]
		if err := seeder.SaveReward(ctx, r); err != nil {
			logger.Fatal().Err(err).Str("reward", r.Title).Msg("rewards")
		}
		fmt.Printf("  - reward %-24s cost=%-5d id=%s\n", r.Title, r.Cost, r.ID)
	}

	brandIDs := make(map[string]int, len(catalog.Brands))
	for i := range catalog.Brands {
		b := &catalog.Brands[i]
		if err := seeder.SaveBrand(ctx, b); err != nil {
			logger.Fatal().Err(err).Msg("brands")
		}
		brandIDs[b.Name] = b.ID
	}
	for _, o := range catalog.Outlets {
		out := o.Outlet
		out.BrandID = brandIDs[o.Brand]
		if err := seeder.SaveOutlet(ctx, &out); err != nil {
			logger.Fatal().Err(err).Msg("outlets")
		}
	}
	for _, p := range catalog.Promotions {
		promo := p.Promotion
		if id, ok := brandIDs[p.Brand]; ok {
			promo.BrandID = &id
		}
		if err := seeder.SavePromotion(ctx, &promo); err != nil {
			logger.Fatal().Err(err).Msg("promotions")
		}
	}

	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; cached tiers expire on their own")
		} else {
			defer rc.Close()
			if err := pg.InvalidateTiers(ctx, rc); err != nil {
				logger.Warn().Err(err).Msg("tier cache invalidation failed")
			}
		}
	}

	fmt.Printf("seeded %d tiers, %d rewards, %d brands, %d outlets, %d promotions\n",
		len(catalog.Tiers), len(catalog.Rewards), len(catalog.Brands), len(catalog.Outlets), len(catalog.Promotions))
}
