package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"uplus-loyalty/internal/domain/model"
)

// CatalogSeeder writes reference data. Every statement is an upsert so the
// seeder can run repeatedly.
type CatalogSeeder struct {
	pool  *pgxpool.Pool
	tiers *PostgresTierRepo
}

func NewCatalogSeeder(pool *pgxpool.Pool) *CatalogSeeder {
	return &CatalogSeeder{pool: pool, tiers: NewPostgresTierRepo(pool)}
}

func (s *CatalogSeeder) SaveTier(ctx context.Context, t *model.Tier) error {
	return s.tiers.Save(ctx, t)
}

func (s *CatalogSeeder) SaveRewardCategory(ctx context.Context, c *model.RewardCategory) error {
	const q = `
INSERT INTO reward_categories (code, label) VALUES ($1, $2)
ON CONFLICT (code) DO UPDATE SET label = EXCLUDED.label;`
	if _, err := s.pool.Exec(ctx, q, c.Code, c.Label); err != nil {
		return fmt.Errorf("save reward category: %w", err)
	}
	return nil
}

// SaveReward upserts by id and fills r.ID when empty.
func (s *CatalogSeeder) SaveReward(ctx context.Context, r *model.Reward) error {
	const q = `
INSERT INTO rewards (id, category_code, title, description, image_url, cost, available)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
  SET category_code = EXCLUDED.category_code, title = EXCLUDED.title,
      description = EXCLUDED.description, image_url = EXCLUDED.image_url,
      cost = EXCLUDED.cost, available = EXCLUDED.available
RETURNING id::text;`
	if err := s.pool.QueryRow(ctx, q, r.ID, r.CategoryCode, r.Title, r.Description, r.ImageURL, r.Cost, r.Available).Scan(&r.ID); err != nil {
		return fmt.Errorf("save reward: %w", err)
	}
	return nil
}

func (s *CatalogSeeder) SaveBrand(ctx context.Context, b *model.Brand) error {
	const q = `
INSERT INTO brands (name, logo_url, description) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET logo_url = EXCLUDED.logo_url, description = EXCLUDED.description
RETURNING id;`
	if err := s.pool.QueryRow(ctx, q, b.Name, b.LogoURL, b.Description).Scan(&b.ID); err != nil {
		return fmt.Errorf("save brand: %w", err)
	}
	return nil
}

func (s *CatalogSeeder) SaveOutlet(ctx context.Context, o *model.Outlet) error {
	const q = `
INSERT INTO outlets (brand_id, name, address, lat, lng, phone) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (brand_id, name) DO UPDATE
  SET address = EXCLUDED.address, lat = EXCLUDED.lat, lng = EXCLUDED.lng, phone = EXCLUDED.phone
RETURNING id;`
	if err := s.pool.QueryRow(ctx, q, o.BrandID, o.Name, o.Address, o.Lat, o.Lng, o.Phone).Scan(&o.ID); err != nil {
		return fmt.Errorf("save outlet: %w", err)
	}
	return nil
}

func (s *CatalogSeeder) SavePromotion(ctx context.Context, p *model.Promotion) error {
	const q = `
INSERT INTO promotions (brand_id, title, content_md, image_url, start_date, end_date, urgent)
VALUES ($1, $2, $3, $4, $5::date, $6::date, $7)
ON CONFLICT (title) DO UPDATE
  SET brand_id = EXCLUDED.brand_id, content_md = EXCLUDED.content_md, image_url = EXCLUDED.image_url,
      start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, urgent = EXCLUDED.urgent
RETURNING id::text;`
	start := p.StartDate.UTC().Format("2006-01-02")
	end := p.EndDate.UTC().Format("2006-01-02")
	if err := s.pool.QueryRow(ctx, q, p.BrandID, p.Title, p.ContentMD, p.ImageURL, start, end, p.Urgent).Scan(&p.ID); err != nil {
		return fmt.Errorf("save promotion: %w", err)
	}
	return nil
}

// RewardIDsByTitle returns every reward id keyed by title, available or not.
func (s *CatalogSeeder) RewardIDsByTitle(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, title FROM rewards;`)
	if err != nil {
		return nil, fmt.Errorf("list reward ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out[title] = id
	}
	return out, rows.Err()
}
