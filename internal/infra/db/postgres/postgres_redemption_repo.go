package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/metrics"
)

var _ repository.RedemptionRepository = (*PostgresRedemptionRepo)(nil)

type PostgresRedemptionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRedemptionRepo(pool *pgxpool.Pool) *PostgresRedemptionRepo {
	return &PostgresRedemptionRepo{pool: pool}
}

// ListByUser reports pending vouchers past their deadline as expired.
func (r *PostgresRedemptionRepo) ListByUser(ctx context.Context, userID string) ([]*model.Redemption, error) {
	defer metrics.ObserveQuery("redemption_list")()

	const q = `
SELECT d.id, d.user_id, d.reward_id, d.cost, d.qr_code,
       CASE WHEN d.status = 'pending' AND d.expires_at <= now() THEN 'expired' ELSE d.status END,
       d.expires_at, d.created_at,
       r.id, r.category_code, r.title, r.description, r.image_url, r.cost, r.available, r.created_at
  FROM redemptions d
  JOIN rewards r ON r.id = d.reward_id
 WHERE d.user_id = $1
 ORDER BY d.created_at DESC;`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	out := []*model.Redemption{}
	for rows.Next() {
		var (
			d      model.Redemption
			rw     model.Reward
			status string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.RewardID, &d.Cost, &d.QRCode, &status, &d.ExpiresAt, &d.CreatedAt,
			&rw.ID, &rw.CategoryCode, &rw.Title, &rw.Description, &rw.ImageURL, &rw.Cost, &rw.Available, &rw.CreatedAt); err != nil {
			return nil, err
		}
		d.Status = model.RedemptionStatus(status)
		d.Reward = &rw
		out = append(out, &d)
	}
	return out, rows.Err()
}
