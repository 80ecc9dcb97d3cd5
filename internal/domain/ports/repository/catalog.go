package repository

import (
	"context"
	"time"

	"uplus-loyalty/internal/domain/model"
)

// CatalogRepository serves the read-only browse surfaces.
type CatalogRepository interface {
	// ListRewards returns available rewards ordered by cost, joined with their
	// category. An empty category means all categories.
	ListRewards(ctx context.Context, category string) ([]*model.Reward, error)
	FindReward(ctx context.Context, id string) (*model.Reward, error)
	ListRewardCategories(ctx context.Context) ([]*model.RewardCategory, error)
	ListBrands(ctx context.Context) ([]*model.Brand, error)
	// ListOutlets returns outlets ordered by name, joined with brand. A nil
	// brandID means every brand.
	ListOutlets(ctx context.Context, brandID *int) ([]*model.Outlet, error)
	// ListActivePromotions returns promotions running on day, newest first.
	ListActivePromotions(ctx context.Context, day time.Time) ([]*model.Promotion, error)
}
