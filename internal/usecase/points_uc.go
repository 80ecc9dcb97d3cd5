package usecase

import (
	"context"
	"fmt"
	"strings"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/logging"

	"github.com/rs/zerolog"
)

// PointsUseCase covers the point-of-sale side: granting points to the
// signed-in member and validating a scanned member QR.
type PointsUseCase struct {
	account MemberSession
	ledger  repository.LedgerRepository
	procs   adapter.RemoteProcedures
	cache   repository.QueryCache
	log     *zerolog.Logger
}

func NewPointsUseCase(account MemberSession, ledger repository.LedgerRepository, procs adapter.RemoteProcedures, cache repository.QueryCache, logger *zerolog.Logger) *PointsUseCase {
	return &PointsUseCase{account: account, ledger: ledger, procs: procs, cache: cache, log: logger}
}

// Award appends a positive ledger entry. The redemption source is reserved
// for the redeem procedure.
func (p *PointsUseCase) Award(ctx context.Context, delta int64, reason string, source model.PointsSource, refID *string) (*model.LedgerEntry, error) {
	defer logging.TraceDuration(p.log, "PointsUC.Award")()

	user := p.account.User()
	if user == nil {
		return nil, &domain.NotAuthenticatedError{Op: "award points"}
	}
	if delta <= 0 {
		return nil, &domain.ValidationError{Field: "delta", Message: "must be positive"}
	}
	if source == model.PointsSourceRedemption {
		return nil, &domain.ValidationError{Field: "source", Message: "redemption entries are created by the redeem procedure"}
	}
	e, err := model.NewLedgerEntry(user.ID, delta, strings.TrimSpace(reason), source)
	if err != nil {
		return nil, err
	}
	e.RefID = refID

	saved, err := p.ledger.Insert(ctx, repository.NoTX, e)
	if err != nil {
		return nil, fmt.Errorf("award points: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, PointsHistoryKey(user.ID)); err != nil {
			p.log.Warn().Err(err).Msg("points history invalidation failed")
		}
	}
	_ = p.account.RefreshProfile(ctx)
	return saved, nil
}

// ValidateMemberQR checks a scanned member token and returns who it belongs to.
func (p *PointsUseCase) ValidateMemberQR(ctx context.Context, token string) (*model.MemberQRValidation, error) {
	defer logging.TraceDuration(p.log, "PointsUC.ValidateMemberQR")()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &domain.ValidationError{Field: "qr_token", Message: "required"}
	}
	return p.procs.ValidateMemberQRToken(ctx, token)
}
