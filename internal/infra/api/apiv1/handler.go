package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/infra/i18n"
	"uplus-loyalty/internal/infra/logging"
	"uplus-loyalty/internal/infra/metrics"
	"uplus-loyalty/internal/infra/redis"
	"uplus-loyalty/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes  = 1 << 16
	redeemLockTTL = 30 * time.Second
	signInLimit   = 5
	signInWindow  = time.Minute
)

// Limiter is a fixed-window attempt counter keyed by caller.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}

// Locker guards one redemption per member at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// Deps are the use cases served by the v1 API. Limiter, Locker and Staff are
// optional; without Staff the staff routes are unauthenticated.
type Deps struct {
	Account     *usecase.AccountManager
	Redemptions *usecase.RedemptionService
	History     *usecase.HistoryUseCase
	Points      *usecase.PointsUseCase
	Catalog     *usecase.CatalogUseCase
	Bundle      *i18n.Bundle
	Limiter     Limiter
	Locker      Locker
	Staff       *StaffAuth
	// DevLogs disables redaction of emails and tokens in logs.
	DevLogs     bool
}

type Handler struct {
	Deps
	log *zerolog.Logger
}

func NewHandler(deps Deps, logger *zerolog.Logger) *Handler {
	l := logger.With().Str("component", "apiv1").Logger()
	return &Handler{Deps: deps, log: &l}
}

// Routes registers every v1 endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.memberContext)
	r.Get("/state", h.state)

	r.Route("/session", func(r chi.Router) {
		r.Post("/sign-in", h.signIn)
		r.Post("/sign-up", h.signUp)
		r.Post("/sign-out", h.signOut)
	})

	r.Route("/me", func(r chi.Router) {
		r.Get("/", h.me)
		r.Patch("/", h.updateMe)
		r.Post("/refresh", h.refreshMe)
		r.Post("/qr", h.memberQR)
		r.Get("/points-history", h.pointsHistory)
		r.Get("/redemptions", h.redemptions)
		r.With(h.staffOnly).Post("/points", h.awardPoints)
	})

	r.Get("/tiers", h.tiers)
	r.Get("/rewards", h.rewards)
	r.Get("/reward-categories", h.rewardCategories)
	r.Post("/rewards/{id}/redeem", h.redeem)
	r.Get("/brands", h.brands)
	r.Get("/outlets", h.outlets)
	r.Get("/promotions", h.promotions)
	r.With(h.staffOnly).Post("/qr/validate", h.validateQR)
}

// memberContext tags request logs with the signed-in member.
func (h *Handler) memberContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := h.Account.User(); u != nil {
			r = r.WithContext(logging.WithUserID(r.Context(), u.ID))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) staffOnly(next http.Handler) http.Handler {
	if h.Staff == nil {
		return next
	}
	return h.Staff.Require(h)(next)
}

func (h *Handler) tr(r *http.Request) *i18n.Translator {
	return h.Bundle.For(r.Header.Get("Accept-Language"))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classify(err)
	l := logging.With(r.Context(), h.log)
	if status >= 500 {
		l.Error().Err(err).Msg("request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	failure(w, r, h.tr(r), err)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// --- session ---

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	success(w, r, http.StatusOK, h.Account.Snapshot())
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if h.Limiter != nil && in.Email != "" {
		ok, err := h.Limiter.Allow(r.Context(), redis.SignInKey(in.Email), signInLimit, signInWindow)
		if err != nil {
			logging.With(r.Context(), h.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			logging.With(r.Context(), h.log).Info().
				Str("email", logging.RedactEmail(in.Email, h.DevLogs)).Msg("sign-in throttled")
			h.fail(w, r, ErrTooManyAttempts)
			return
		}
	}
	if _, err := h.Account.SignIn(r.Context(), in.Email, in.Password); err != nil {
		logging.With(r.Context(), h.log).Info().
			Str("email", logging.RedactEmail(in.Email, h.DevLogs)).Msg("sign-in rejected")
		h.fail(w, r, err)
		return
	}
	if h.Limiter != nil {
		if err := h.Limiter.Reset(r.Context(), redis.SignInKey(in.Email)); err != nil {
			logging.With(r.Context(), h.log).Warn().Err(err).Msg("sign-in attempts not reset")
		}
	}
	success(w, r, http.StatusOK, h.Account.Snapshot())
}

type signUpResponse struct {
	User     *model.User `json:"user"`
	SignedIn bool        `json:"signed_in"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.Account.SignUp(r.Context(), in.Email, in.Password, in.DisplayName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusCreated, signUpResponse{User: user, SignedIn: h.Account.SignedIn()})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	h.Account.SignOut(r.Context())
	success(w, r, http.StatusOK, h.Account.Snapshot())
}

// --- member ---

type meResponse struct {
	Profile          *model.Profile `json:"profile"`
	CurrentTier      *model.Tier    `json:"current_tier"`
	NextTier         *model.Tier    `json:"next_tier"`
	PointsToNextTier int64          `json:"points_to_next_tier"`
	Progress         string         `json:"progress"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	if !h.Account.SignedIn() {
		h.fail(w, r, &domain.NotAuthenticatedError{Op: "view profile"})
		return
	}
	profile := h.Account.Profile()
	if profile == nil {
		h.fail(w, r, domain.ErrProfileNotLoaded)
		return
	}
	h.writeMe(w, r, profile)
}

func (h *Handler) writeMe(w http.ResponseWriter, r *http.Request, profile *model.Profile) {
	resp := meResponse{
		Profile:          profile,
		CurrentTier:      h.Account.CurrentTier(),
		NextTier:         h.Account.NextTier(),
		PointsToNextTier: h.Account.PointsToNextTier(),
	}
	tr := h.tr(r)
	if resp.NextTier != nil {
		resp.Progress = tr.T("points_to_next_tier", resp.PointsToNextTier, resp.NextTier.Name)
	} else {
		resp.Progress = tr.T("top_tier")
	}
	success(w, r, http.StatusOK, resp)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var upd model.ProfileUpdate
	if err := decode(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	profile, err := h.Account.UpdateProfile(r.Context(), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeMe(w, r, profile)
}

func (h *Handler) refreshMe(w http.ResponseWriter, r *http.Request) {
	if err := h.Account.RefreshProfile(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	profile := h.Account.Profile()
	if profile == nil {
		h.fail(w, r, domain.ErrProfileNotLoaded)
		return
	}
	h.writeMe(w, r, profile)
}

func (h *Handler) memberQR(w http.ResponseWriter, r *http.Request) {
	token, err := h.Account.GenerateMemberQRCode(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) pointsHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.History.PointsHistory(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusOK, map[string]any{"items": entries})
}

type redemptionView struct {
	*model.Redemption
	Expired bool `json:"expired"`
}

func (h *Handler) redemptions(w http.ResponseWriter, r *http.Request) {
	list, err := h.History.Redemptions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := time.Now()
	items := make([]redemptionView, 0, len(list))
	for _, rd := range list {
		items = append(items, redemptionView{Redemption: rd, Expired: rd.Expired(now)})
	}
	success(w, r, http.StatusOK, map[string]any{"items": items})
}

type awardRequest struct {
	Delta  int64              `json:"delta"`
	Reason string             `json:"reason"`
	Source model.PointsSource `json:"source"`
	RefID  *string            `json:"ref_id,omitempty"`
}

func (h *Handler) awardPoints(w http.ResponseWriter, r *http.Request) {
	var in awardRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.Source == "" {
		in.Source = model.PointsSourceManual
	}
	entry, err := h.Points.Award(r.Context(), in.Delta, in.Reason, in.Source, in.RefID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusCreated, map[string]any{"entry": entry, "profile": h.Account.Profile()})
}

// --- catalog ---

func (h *Handler) tiers(w http.ResponseWriter, r *http.Request) {
	c := h.Account.Catalog()
	c.EnsureLoaded(r.Context())
	success(w, r, http.StatusOK, map[string]any{"items": c.Tiers()})
}

func (h *Handler) rewards(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.Rewards(r.Context(), strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusOK, map[string]any{"items": list})
}

func (h *Handler) rewardCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.RewardCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusOK, map[string]any{"items": list})
}

func (h *Handler) brands(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.Brands(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusOK, map[string]any{"items": list})
}

func (h *Handler) outlets(w http.ResponseWriter, r *http.Request) {
	var brandID *int
	if raw := r.URL.Query().Get("brand_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			h.fail(w, r, &domain.ValidationError{Field: "brand_id", Message: "must be a positive integer"})
			return
		}
		brandID = &id
	}
	list, err := h.Catalog.Outlets(r.Context(), brandID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusOK, map[string]any{"items": list})
}

func (h *Handler) promotions(w http.ResponseWriter, r *http.Request) {
	kind := model.PromotionKind(strings.ToLower(r.URL.Query().Get("kind")))
	list, err := h.Catalog.Promotions(r.Context(), kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusOK, map[string]any{"items": list})
}

// --- redemption ---

type voucherResponse struct {
	Voucher          *usecase.Voucher `json:"voucher"`
	ExpiresInMinutes int              `json:"expires_in_minutes"`
	Message          string           `json:"message"`
	ExpiryNotice     string           `json:"expiry_notice"`
	Profile          *model.Profile   `json:"profile"`
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := h.Account.User()
	if user == nil {
		h.fail(w, r, &domain.NotAuthenticatedError{Op: "redeem reward"})
		return
	}
	reward, err := h.Catalog.Reward(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.Locker != nil {
		key := redis.RedeemLockKey(user.ID)
		token, err := h.Locker.TryLock(ctx, key, redeemLockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				metrics.IncRedeemLockConflict()
			}
			h.fail(w, r, err)
			return
		}
		defer func() {
			if err := h.Locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				logging.With(ctx, h.log).Warn().Err(err).Msg("redeem unlock failed")
			}
		}()
	}

	v, err := h.Redemptions.Redeem(ctx, reward)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	metrics.AddPointsRedeemed(v.Cost)

	minutes := int(v.ExpiresIn / time.Minute)
	tr := h.tr(r)
	success(w, r, http.StatusOK, voucherResponse{
		Voucher:          v,
		ExpiresInMinutes: minutes,
		Message:          tr.T("redemption_success"),
		ExpiryNotice:     tr.T("voucher_expires_in", minutes),
		Profile:          h.Account.Profile(),
	})
}

type validateQRRequest struct {
	Token string `json:"token"`
}

func (h *Handler) validateQR(w http.ResponseWriter, r *http.Request) {
	var in validateQRRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Points.ValidateMemberQR(r.Context(), in.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	success(w, r, http.StatusOK, res)
}
