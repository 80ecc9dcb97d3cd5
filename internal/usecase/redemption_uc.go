package usecase

import (
	"context"
	"sync"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/logging"

	"github.com/rs/zerolog"
)

type RedemptionStep string

const (
	StepConfirm    RedemptionStep = "CONFIRM"
	StepProcessing RedemptionStep = "PROCESSING"
	StepSuccess    RedemptionStep = "SUCCESS"
)

// Voucher is the result of a successful redemption. Expiry is enforced by the
// backend; ExpiresAt is the advertised deadline only.
type Voucher struct {
	Code        string        `json:"code"`
	RewardID    string        `json:"reward_id"`
	RewardTitle string        `json:"reward_title"`
	Cost        int64         `json:"cost"`
	ExpiresAt   time.Time     `json:"expires_at"`
	ExpiresIn   time.Duration `json:"-"`
}

// RedemptionService starts redemption attempts for the signed-in member.
type RedemptionService struct {
	account MemberSession
	procs   adapter.RemoteProcedures
	cache   repository.QueryCache
	log     *zerolog.Logger
	ttl     time.Duration
	now     func() time.Time
}

func NewRedemptionService(account MemberSession, procs adapter.RemoteProcedures, cache repository.QueryCache, logger *zerolog.Logger) *RedemptionService {
	return &RedemptionService{
		account: account,
		procs:   procs,
		cache:   cache,
		log:     logger,
		ttl:     model.VoucherTTL,
		now:     time.Now,
	}
}

// WithVoucherTTL overrides the advertised voucher lifetime.
func (s *RedemptionService) WithVoucherTTL(d time.Duration) *RedemptionService {
	if d > 0 {
		s.ttl = d
	}
	return s
}

// Begin opens a workflow in the CONFIRM step for reward.
func (s *RedemptionService) Begin(reward *model.Reward) *RedemptionWorkflow {
	return &RedemptionWorkflow{svc: s, reward: reward, step: StepConfirm}
}

// Redeem runs a single attempt from CONFIRM to completion.
func (s *RedemptionService) Redeem(ctx context.Context, reward *model.Reward) (*Voucher, error) {
	return s.Begin(reward).Confirm(ctx)
}

// RedemptionWorkflow is one redemption attempt: CONFIRM -> PROCESSING ->
// SUCCESS, or back to CONFIRM on failure so the member can retry.
type RedemptionWorkflow struct {
	svc    *RedemptionService
	reward *model.Reward

	mu      sync.Mutex
	step    RedemptionStep
	voucher *Voucher
	lastErr error
}

func (w *RedemptionWorkflow) Step() RedemptionStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *RedemptionWorkflow) Voucher() *Voucher {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.voucher
}

func (w *RedemptionWorkflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *RedemptionWorkflow) Reward() *model.Reward { return w.reward }

// Confirm checks affordability locally, then calls the redeem procedure.
// An unaffordable reward yields *domain.InsufficientPointsError without any
// remote call. A remote failure or empty voucher yields *domain.RedemptionError.
func (w *RedemptionWorkflow) Confirm(ctx context.Context) (*Voucher, error) {
	s := w.svc
	defer logging.TraceDuration(s.log, "RedemptionWorkflow.Confirm")()

	w.mu.Lock()
	if w.step != StepConfirm {
		w.mu.Unlock()
		return nil, domain.ErrRedemptionState
	}
	if w.reward == nil || w.reward.ID == "" {
		w.mu.Unlock()
		return nil, &domain.ValidationError{Field: "reward", Message: "required"}
	}
	user := s.account.User()
	if user == nil {
		w.mu.Unlock()
		return nil, w.fail(&domain.NotAuthenticatedError{Op: "redeem reward"})
	}
	profile := s.account.Profile()
	if profile == nil {
		w.mu.Unlock()
		return nil, w.fail(domain.ErrProfileNotLoaded)
	}
	if !w.reward.AffordableWith(profile.Points) {
		w.mu.Unlock()
		return nil, w.fail(domain.NewInsufficientPointsError(w.reward.Cost, profile.Points))
	}
	w.step = StepProcessing
	w.mu.Unlock()

	log := s.log.With().Str("user_id", user.ID).Str("reward_id", w.reward.ID).Logger()

	code, err := s.procs.RedeemReward(ctx, user.ID, w.reward.ID)
	if err != nil || code == "" {
		rerr := &domain.RedemptionError{RewardID: w.reward.ID, Err: err}
		log.Warn().Err(rerr).Msg("redemption failed")
		w.mu.Lock()
		w.step = StepConfirm
		w.lastErr = rerr
		w.mu.Unlock()
		return nil, rerr
	}

	v := &Voucher{
		Code:        code,
		RewardID:    w.reward.ID,
		RewardTitle: w.reward.Title,
		Cost:        w.reward.Cost,
		ExpiresAt:   s.now().Add(s.ttl),
		ExpiresIn:   s.ttl,
	}
	w.mu.Lock()
	w.step = StepSuccess
	w.voucher = v
	w.lastErr = nil
	w.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, RedemptionsKey(user.ID), PointsHistoryKey(user.ID)); err != nil {
			log.Warn().Err(err).Msg("history cache invalidation failed")
		}
	}
	if err := s.account.RefreshProfile(ctx); err != nil {
		log.Warn().Err(err).Msg("profile refresh after redemption failed")
	}
	log.Info().Int64("cost", v.Cost).Msg("reward redeemed")
	return v, nil
}

// Reset returns a finished or failed workflow to CONFIRM. It has no effect
// while a remote call is in flight.
func (w *RedemptionWorkflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepProcessing {
		return
	}
	w.step = StepConfirm
	w.voucher = nil
	w.lastErr = nil
}

func (w *RedemptionWorkflow) fail(err error) error {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	return err
}
