package usecase

import (
	"context"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/logging"

	"github.com/rs/zerolog"
)

// CatalogUseCase is the read-only browse surface: rewards, brands, outlets
// and promotions.
type CatalogUseCase struct {
	repo repository.CatalogRepository
	log  *zerolog.Logger
	now  func() time.Time
}

func NewCatalogUseCase(repo repository.CatalogRepository, logger *zerolog.Logger) *CatalogUseCase {
	return &CatalogUseCase{repo: repo, log: logger, now: time.Now}
}

func (c *CatalogUseCase) Rewards(ctx context.Context, category string) ([]*model.Reward, error) {
	defer logging.TraceDuration(c.log, "CatalogUC.Rewards")()
	return c.repo.ListRewards(ctx, category)
}

func (c *CatalogUseCase) Reward(ctx context.Context, id string) (*model.Reward, error) {
	defer logging.TraceDuration(c.log, "CatalogUC.Reward")()
	if id == "" {
		return nil, &domain.ValidationError{Field: "reward_id", Message: "required"}
	}
	return c.repo.FindReward(ctx, id)
}

func (c *CatalogUseCase) RewardCategories(ctx context.Context) ([]*model.RewardCategory, error) {
	defer logging.TraceDuration(c.log, "CatalogUC.RewardCategories")()
	return c.repo.ListRewardCategories(ctx)
}

func (c *CatalogUseCase) Brands(ctx context.Context) ([]*model.Brand, error) {
	defer logging.TraceDuration(c.log, "CatalogUC.Brands")()
	return c.repo.ListBrands(ctx)
}

func (c *CatalogUseCase) Outlets(ctx context.Context, brandID *int) ([]*model.Outlet, error) {
	defer logging.TraceDuration(c.log, "CatalogUC.Outlets")()
	return c.repo.ListOutlets(ctx, brandID)
}

// Promotions returns promotions running today, newest first, filtered by kind.
func (c *CatalogUseCase) Promotions(ctx context.Context, kind model.PromotionKind) ([]*model.Promotion, error) {
	defer logging.TraceDuration(c.log, "CatalogUC.Promotions")()

	if !kind.Valid() {
		return nil, &domain.ValidationError{Field: "kind", Message: "must be events or promotions"}
	}
	all, err := c.repo.ListActivePromotions(ctx, c.now())
	if err != nil {
		return nil, err
	}
	out := make([]*model.Promotion, 0, len(all))
	for _, p := range all {
		if p.Matches(kind) {
			out = append(out, p)
		}
	}
	return out, nil
}
