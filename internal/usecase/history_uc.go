package usecase

import (
	"context"
	"errors"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/logging"

	"github.com/rs/zerolog"
)

// PointsHistoryLimit caps the ledger entries returned to the member.
const PointsHistoryLimit = 30

// HistoryUseCase serves the signed-in member's ledger and redemption history
// through the query cache.
type HistoryUseCase struct {
	account     MemberSession
	ledger      repository.LedgerRepository
	redemptions repository.RedemptionRepository
	cache       repository.QueryCache
	ttl         time.Duration
	log         *zerolog.Logger
}

func NewHistoryUseCase(account MemberSession, ledger repository.LedgerRepository, redemptions repository.RedemptionRepository, cache repository.QueryCache, ttl time.Duration, logger *zerolog.Logger) *HistoryUseCase {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &HistoryUseCase{
		account:     account,
		ledger:      ledger,
		redemptions: redemptions,
		cache:       cache,
		ttl:         ttl,
		log:         logger,
	}
}

// PointsHistory returns the latest ledger entries, newest first. It returns an
// empty list when no member is signed in.
func (h *HistoryUseCase) PointsHistory(ctx context.Context) ([]*model.LedgerEntry, error) {
	defer logging.TraceDuration(h.log, "HistoryUC.PointsHistory")()

	user := h.account.User()
	if user == nil {
		return []*model.LedgerEntry{}, nil
	}
	key := PointsHistoryKey(user.ID)

	var out []*model.LedgerEntry
	if h.cached(ctx, key, &out) {
		return out, nil
	}
	out, err := h.ledger.ListByUser(ctx, user.ID, PointsHistoryLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*model.LedgerEntry{}
	}
	h.store(ctx, key, out)
	return out, nil
}

// Redemptions returns the member's redemptions joined with their reward, newest first.
func (h *HistoryUseCase) Redemptions(ctx context.Context) ([]*model.Redemption, error) {
	defer logging.TraceDuration(h.log, "HistoryUC.Redemptions")()

	user := h.account.User()
	if user == nil {
		return []*model.Redemption{}, nil
	}
	key := RedemptionsKey(user.ID)

	var out []*model.Redemption
	if h.cached(ctx, key, &out) {
		return out, nil
	}
	out, err := h.redemptions.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*model.Redemption{}
	}
	h.store(ctx, key, out)
	return out, nil
}

func (h *HistoryUseCase) cached(ctx context.Context, key string, dst any) bool {
	if h.cache == nil {
		return false
	}
	err := h.cache.Get(ctx, key, dst)
	if err == nil {
		return true
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		h.log.Warn().Err(err).Str("key", key).Msg("query cache read failed")
	}
	return false
}

func (h *HistoryUseCase) store(ctx context.Context, key string, v any) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, key, v, h.ttl); err != nil {
		h.log.Warn().Err(err).Str("key", key).Msg("query cache write failed")
	}
}
