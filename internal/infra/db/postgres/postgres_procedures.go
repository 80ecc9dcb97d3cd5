package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/infra/metrics"
)

var _ adapter.RemoteProcedures = (*PostgresProcedures)(nil)

// PostgresProcedures calls the fn_* functions directly over the pool instead
// of through the REST gateway.
type PostgresProcedures struct {
	pool *pgxpool.Pool
}

func NewPostgresProcedures(pool *pgxpool.Pool) *PostgresProcedures {
	return &PostgresProcedures{pool: pool}
}

func (p *PostgresProcedures) RedeemReward(ctx context.Context, userID, rewardID string) (string, error) {
	defer metrics.ObserveQuery("fn_redeem_reward")()

	var code *string
	if err := p.pool.QueryRow(ctx, `SELECT fn_redeem_reward($1, $2);`, userID, rewardID).Scan(&code); err != nil {
		return "", mapProcedureError("fn_redeem_reward", err)
	}
	return deref(code), nil
}

func (p *PostgresProcedures) GenerateMemberQRToken(ctx context.Context, userID string) (string, error) {
	defer metrics.ObserveQuery("fn_generate_member_qr_token")()

	var tok *string
	if err := p.pool.QueryRow(ctx, `SELECT fn_generate_member_qr_token($1);`, userID).Scan(&tok); err != nil {
		return "", mapProcedureError("fn_generate_member_qr_token", err)
	}
	return deref(tok), nil
}

func (p *PostgresProcedures) ValidateMemberQRToken(ctx context.Context, token string) (*model.MemberQRValidation, error) {
	defer metrics.ObserveQuery("fn_validate_member_qr_token")()

	const q = `SELECT member_id::text, display_name, points, tier_name, is_valid FROM fn_validate_member_qr_token($1) LIMIT 1;`
	var v model.MemberQRValidation
	err := p.pool.QueryRow(ctx, q, token).Scan(&v.MemberID, &v.DisplayName, &v.Points, &v.TierName, &v.IsValid)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.MemberQRValidation{IsValid: false}, nil
	}
	if err != nil {
		return nil, mapProcedureError("fn_validate_member_qr_token", err)
	}
	return &v, nil
}

func mapProcedureError(fn string, err error) error {
	switch pgCode(err) {
	case pgCheckViolation:
		return fmt.Errorf("%s: %w", fn, domain.ErrInsufficientPoints)
	case pgRaiseException:
		msg := pgMessage(err)
		switch {
		case strings.Contains(msg, "insufficient points"):
			return fmt.Errorf("%s: %w", fn, domain.ErrInsufficientPoints)
		case strings.Contains(msg, "not found"), strings.Contains(msg, "not available"):
			return fmt.Errorf("%s: %s: %w", fn, msg, domain.ErrNotFound)
		}
		return fmt.Errorf("%s: %s", fn, msg)
	}
	return fmt.Errorf("%s: %w", fn, err)
}
