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

var _ repository.ProfileRepository = (*PostgresProfileRepo)(nil)

type PostgresProfileRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresProfileRepo(pool *pgxpool.Pool) *PostgresProfileRepo {
	return &PostgresProfileRepo{pool: pool}
}

const profileSelect = `
SELECT p.id, p.display_name, p.avatar_url, p.tier_id, p.points, p.created_at,
       p.member_qr_token, p.qr_code_data, p.qr_code_updated_at,
       t.id, t.name, t.min_points, t.benefits, t.created_at
  FROM profiles p
  LEFT JOIN tiers t ON t.id = p.tier_id
`

func (r *PostgresProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	defer metrics.ObserveQuery("profile_find")()

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	p, err := scanProfile(ex.QueryRow(ctx, profileSelect+` WHERE p.id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

// Update writes only the provided fields and returns the row joined with its tier.
func (r *PostgresProfileRepo) Update(ctx context.Context, tx repository.Tx, id string, upd model.ProfileUpdate) (*model.Profile, error) {
	defer metrics.ObserveQuery("profile_update")()

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
UPDATE profiles
   SET display_name = CASE WHEN $2::boolean THEN $3 ELSE display_name END,
       avatar_url   = CASE WHEN $4::boolean THEN $5 ELSE avatar_url END
 WHERE id = $1;`
	tag, err := ex.Exec(ctx, q, id,
		upd.DisplayName != nil, upd.DisplayName,
		upd.AvatarURL != nil, upd.AvatarURL)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return r.FindByID(ctx, tx, id)
}

// Upsert inserts the profile or refreshes display_name/avatar_url only, so a
// retried creation never resets an earned balance or tier.
func (r *PostgresProfileRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Profile) (*model.Profile, error) {
	defer metrics.ObserveQuery("profile_upsert")()

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO profiles (id, display_name, avatar_url, tier_id, points, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
  SET display_name = EXCLUDED.display_name,
      avatar_url   = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url);`
	if _, err := ex.Exec(ctx, q, p.ID, p.DisplayName, p.AvatarURL, p.TierID, p.Points, p.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return r.FindByID(ctx, tx, p.ID)
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p        model.Profile
		tID      *int
		tName    *string
		tMin     *int64
		tBenefit map[string]any
		tCreated *time.Time
	)
	if err := row.Scan(&p.ID, &p.DisplayName, &p.AvatarURL, &p.TierID, &p.Points, &p.CreatedAt,
		&p.MemberQRToken, &p.QRCodeData, &p.QRCodeUpdatedAt,
		&tID, &tName, &tMin, &tBenefit, &tCreated); err != nil {
		return nil, err
	}
	if tID != nil {
		p.Tier = &model.Tier{ID: *tID, Name: deref(tName), MinPoints: derefInt(tMin), Benefits: tBenefit}
		if tCreated != nil {
			p.Tier.CreatedAt = *tCreated
		}
	}
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
