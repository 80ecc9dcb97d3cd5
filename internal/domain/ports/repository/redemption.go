package repository

import (
	"context"

	"uplus-loyalty/internal/domain/model"
)

type RedemptionRepository interface {
	// ListByUser returns the member's redemptions joined with reward, newest first.
	ListByUser(ctx context.Context, userID string) ([]*model.Redemption, error)
}
