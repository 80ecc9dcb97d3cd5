package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/metrics"
)

var _ repository.LedgerRepository = (*PostgresLedgerRepo)(nil)

// PostgresLedgerRepo appends to points_ledger. The balance and tier follow
// through the trg_points_ledger_apply trigger.
type PostgresLedgerRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresLedgerRepo(pool *pgxpool.Pool) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{pool: pool}
}

func (r *PostgresLedgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) (*model.LedgerEntry, error) {
	defer metrics.ObserveQuery("ledger_insert")()

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO points_ledger (user_id, delta, reason, source, ref_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at;`
	out := *e
	if err := ex.QueryRow(ctx, q, e.UserID, e.Delta, e.Reason, string(e.Source), e.RefID).Scan(&out.ID, &out.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	return &out, nil
}

func (r *PostgresLedgerRepo) HasEntry(ctx context.Context, tx repository.Tx, userID, reason string, source model.PointsSource) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `
SELECT EXISTS (
  SELECT 1 FROM points_ledger WHERE user_id = $1 AND reason = $2 AND source = $3
);`
	var ok bool
	if err := ex.QueryRow(ctx, q, userID, reason, string(source)).Scan(&ok); err != nil {
		return false, fmt.Errorf("ledger exists: %w", err)
	}
	return ok, nil
}

func (r *PostgresLedgerRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error) {
	defer metrics.ObserveQuery("ledger_list")()

	if limit <= 0 {
		limit = 30
	}
	const q = `
SELECT id, user_id, delta, reason, source, ref_id, created_at
  FROM points_ledger
 WHERE user_id = $1
 ORDER BY created_at DESC, id DESC
 LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()
	return scanLedgerRows(rows)
}

func scanLedgerRows(rows pgx.Rows) ([]*model.LedgerEntry, error) {
	out := []*model.LedgerEntry{}
	for rows.Next() {
		var (
			e   model.LedgerEntry
			src string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &src, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Source = model.PointsSource(src)
		out = append(out, &e)
	}
	return out, rows.Err()
}
