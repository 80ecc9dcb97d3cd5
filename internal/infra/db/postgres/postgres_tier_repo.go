package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/metrics"
)

var _ repository.TierRepository = (*PostgresTierRepo)(nil)

type PostgresTierRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTierRepo(pool *pgxpool.Pool) *PostgresTierRepo {
	return &PostgresTierRepo{pool: pool}
}

func (r *PostgresTierRepo) ListAll(ctx context.Context) ([]*model.Tier, error) {
	defer metrics.ObserveQuery("tier_list")()

	const q = `
SELECT id, name, min_points, benefits, created_at
  FROM tiers
 ORDER BY min_points ASC, id ASC;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	var out []*model.Tier
	for rows.Next() {
		var t model.Tier
		if err := rows.Scan(&t.ID, &t.Name, &t.MinPoints, &t.Benefits, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Save upserts a tier by id. Used by the seeder.
func (r *PostgresTierRepo) Save(ctx context.Context, t *model.Tier) error {
	const q = `
INSERT INTO tiers (id, name, min_points, benefits)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
  SET name = EXCLUDED.name, min_points = EXCLUDED.min_points, benefits = EXCLUDED.benefits;`
	benefits := t.Benefits
	if benefits == nil {
		benefits = map[string]any{}
	}
	if _, err := r.pool.Exec(ctx, q, t.ID, t.Name, t.MinPoints, benefits); err != nil {
		return fmt.Errorf("save tier: %w", err)
	}
	return nil
}
