package repository

import (
	"context"

	"uplus-loyalty/internal/domain/model"
)

// ProfileRepository is typed access to the member profile row.
type ProfileRepository interface {
	// FindByID reads one profile joined with its tier. Returns domain.ErrNotFound.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Profile, error)
	// Update applies a partial update scoped to id and returns the stored row.
	Update(ctx context.Context, tx Tx, id string, upd model.ProfileUpdate) (*model.Profile, error)
	// Upsert inserts the profile or, when it already exists, refreshes its
	// identity fields only. Points and tier are never reset by an upsert.
	Upsert(ctx context.Context, tx Tx, p *model.Profile) (*model.Profile, error)
}
