package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/metrics"
)

var _ repository.CatalogRepository = (*PostgresCatalogRepo)(nil)

type PostgresCatalogRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalogRepo(pool *pgxpool.Pool) *PostgresCatalogRepo {
	return &PostgresCatalogRepo{pool: pool}
}

const rewardSelect = `
SELECT r.id, r.category_code, r.title, r.description, r.image_url, r.cost, r.available, r.created_at,
       c.code, c.label
  FROM rewards r
  JOIN reward_categories c ON c.code = r.category_code
`

func (r *PostgresCatalogRepo) ListRewards(ctx context.Context, category string) ([]*model.Reward, error) {
	defer metrics.ObserveQuery("reward_list")()

	q := rewardSelect + ` WHERE r.available AND ($1 = '' OR r.category_code = $1) ORDER BY r.cost ASC, r.title ASC;`
	rows, err := r.pool.Query(ctx, q, category)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	out := []*model.Reward{}
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}

func (r *PostgresCatalogRepo) FindReward(ctx context.Context, id string) (*model.Reward, error) {
	defer metrics.ObserveQuery("reward_find")()

	rw, err := scanReward(r.pool.QueryRow(ctx, rewardSelect+` WHERE r.id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find reward: %w", err)
	}
	return rw, nil
}

func scanReward(row pgx.Row) (*model.Reward, error) {
	var (
		rw  model.Reward
		cat model.RewardCategory
	)
	if err := row.Scan(&rw.ID, &rw.CategoryCode, &rw.Title, &rw.Description, &rw.ImageURL,
		&rw.Cost, &rw.Available, &rw.CreatedAt, &cat.Code, &cat.Label); err != nil {
		return nil, err
	}
	rw.Category = &cat
	return &rw, nil
}

func (r *PostgresCatalogRepo) ListRewardCategories(ctx context.Context) ([]*model.RewardCategory, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, label FROM reward_categories ORDER BY label ASC;`)
	if err != nil {
		return nil, fmt.Errorf("list reward categories: %w", err)
	}
	defer rows.Close()

	out := []*model.RewardCategory{}
	for rows.Next() {
		var c model.RewardCategory
		if err := rows.Scan(&c.Code, &c.Label); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *PostgresCatalogRepo) ListBrands(ctx context.Context) ([]*model.Brand, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, logo_url, description, created_at FROM brands ORDER BY name ASC;`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	out := []*model.Brand{}
	for rows.Next() {
		var b model.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.LogoURL, &b.Description, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (r *PostgresCatalogRepo) ListOutlets(ctx context.Context, brandID *int) ([]*model.Outlet, error) {
	defer metrics.ObserveQuery("outlet_list")()

	const q = `
SELECT o.id, o.brand_id, o.name, o.address, o.lat, o.lng, o.phone, o.created_at,
       b.id, b.name, b.logo_url, b.description, b.created_at
  FROM outlets o
  JOIN brands b ON b.id = o.brand_id
 WHERE ($1::int IS NULL OR o.brand_id = $1)
 ORDER BY o.name ASC;`
	rows, err := r.pool.Query(ctx, q, brandID)
	if err != nil {
		return nil, fmt.Errorf("list outlets: %w", err)
	}
	defer rows.Close()

	out := []*model.Outlet{}
	for rows.Next() {
		var (
			o model.Outlet
			b model.Brand
		)
		if err := rows.Scan(&o.ID, &o.BrandID, &o.Name, &o.Address, &o.Lat, &o.Lng, &o.Phone, &o.CreatedAt,
			&b.ID, &b.Name, &b.LogoURL, &b.Description, &b.CreatedAt); err != nil {
			return nil, err
		}
		o.Brand = &b
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (r *PostgresCatalogRepo) ListActivePromotions(ctx context.Context, day time.Time) ([]*model.Promotion, error) {
	defer metrics.ObserveQuery("promotion_list")()

	const q = `
SELECT p.id, p.brand_id, p.title, p.content_md, p.image_url, p.start_date, p.end_date, p.urgent, p.created_at,
       b.id, b.name
  FROM promotions p
  LEFT JOIN brands b ON b.id = p.brand_id
 WHERE p.start_date <= $1::date AND p.end_date >= $1::date
 ORDER BY p.created_at DESC;`
	rows, err := r.pool.Query(ctx, q, day.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	out := []*model.Promotion{}
	for rows.Next() {
		var (
			p     model.Promotion
			bID   *int
			bName *string
		)
		if err := rows.Scan(&p.ID, &p.BrandID, &p.Title, &p.ContentMD, &p.ImageURL,
			&p.StartDate, &p.EndDate, &p.Urgent, &p.CreatedAt, &bID, &bName); err != nil {
			return nil, err
		}
		if bID != nil {
			p.Brand = &model.Brand{ID: *bID, Name: deref(bName)}
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
