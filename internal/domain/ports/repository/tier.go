package repository

import (
	"context"

	"uplus-loyalty/internal/domain/model"
)

// TierRepository reads the tier catalog.
type TierRepository interface {
	// ListAll returns every tier ordered by min_points ascending.
	ListAll(ctx context.Context) ([]*model.Tier, error)
}
