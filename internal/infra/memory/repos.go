package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
)

var (
	_ repository.ProfileRepository    = (*ProfileRepo)(nil)
	_ repository.TierRepository       = (*TierRepo)(nil)
	_ repository.LedgerRepository     = (*LedgerRepo)(nil)
	_ repository.CatalogRepository    = (*CatalogRepo)(nil)
	_ repository.RedemptionRepository = (*RedemptionRepo)(nil)
	_ repository.TransactionManager   = (*TxManager)(nil)
)

// TxManager serializes transactions. Each repository call is atomic on its
// own; WithTx additionally keeps concurrent transactions from interleaving.
type TxManager struct {
	mu sync.Mutex
}

func NewTxManager() *TxManager { return &TxManager{} }

type memTx struct{}

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, memTx{})
}

type ProfileRepo struct{ s *Store }

func NewProfileRepo(s *Store) *ProfileRepo { return &ProfileRepo{s: s} }

func (r *ProfileRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.s.profileViewLocked(p), nil
}

func (r *ProfileRepo) Update(ctx context.Context, _ repository.Tx, id string, upd model.ProfileUpdate) (*model.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.DisplayName != nil {
		v := *upd.DisplayName
		p.DisplayName = &v
	}
	if upd.AvatarURL != nil {
		v := *upd.AvatarURL
		p.AvatarURL = &v
	}
	return r.s.profileViewLocked(p), nil
}

// Upsert never touches points or tier of an existing row.
func (r *ProfileRepo) Upsert(ctx context.Context, _ repository.Tx, in *model.Profile) (*model.Profile, error) {
	if in == nil || in.ID == "" {
		return nil, domain.ErrInvalidArgument
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cur, ok := r.s.profiles[in.ID]; ok {
		cur.DisplayName = in.DisplayName
		cur.AvatarURL = in.AvatarURL
		return r.s.profileViewLocked(cur), nil
	}
	p := in.Clone()
	p.Tier = nil
	p.Points = 0
	if p.TierID == 0 {
		p.TierID = 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.s.now()
	}
	r.s.profiles[p.ID] = p
	return r.s.profileViewLocked(p), nil
}

type TierRepo struct{ s *Store }

func NewTierRepo(s *Store) *TierRepo { return &TierRepo{s: s} }

func (r *TierRepo) ListAll(ctx context.Context) ([]*model.Tier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Tier, 0, len(r.s.tiers))
	for _, t := range r.s.tiers {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

type LedgerRepo struct{ s *Store }

func NewLedgerRepo(s *Store) *LedgerRepo { return &LedgerRepo{s: s} }

func (r *LedgerRepo) Insert(ctx context.Context, _ repository.Tx, e *model.LedgerEntry) (*model.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.appendLedgerLocked(e)
}

func (r *LedgerRepo) HasEntry(ctx context.Context, _ repository.Tx, userID, reason string, source model.PointsSource) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.hasEntryLocked(userID, reason, source), nil
}

func (r *LedgerRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.LedgerEntry{}
	for i := len(r.s.ledger) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if e := r.s.ledger[i]; e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type CatalogRepo struct{ s *Store }

func NewCatalogRepo(s *Store) *CatalogRepo { return &CatalogRepo{s: s} }

func (r *CatalogRepo) ListRewards(ctx context.Context, category string) ([]*model.Reward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Reward{}
	for _, rw := range r.s.rewards {
		if !rw.Available || (category != "" && rw.CategoryCode != category) {
			continue
		}
		out = append(out, r.rewardViewLocked(rw))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost == out[j].Cost {
			return out[i].ID < out[j].ID
		}
		return out[i].Cost < out[j].Cost
	})
	return out, nil
}

func (r *CatalogRepo) FindReward(ctx context.Context, id string) (*model.Reward, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rw, ok := r.s.rewards[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.rewardViewLocked(rw), nil
}

func (r *CatalogRepo) rewardViewLocked(rw *model.Reward) *model.Reward {
	cp := *rw
	if c, ok := r.s.categories[rw.CategoryCode]; ok {
		cc := *c
		cp.Category = &cc
	}
	return &cp
}

func (r *CatalogRepo) ListRewardCategories(ctx context.Context) ([]*model.RewardCategory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.RewardCategory, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r *CatalogRepo) ListBrands(ctx context.Context) ([]*model.Brand, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.Brand, 0, len(r.s.brands))
	for _, b := range r.s.brands {
		cp := *b
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (r *CatalogRepo) ListOutlets(ctx context.Context, brandID *int) ([]*model.Outlet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Outlet{}
	for _, o := range r.s.outlets {
		if brandID != nil && o.BrandID != *brandID {
			continue
		}
		cp := *o
		cp.Brand = r.brandLocked(o.BrandID)
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CatalogRepo) ListActivePromotions(ctx context.Context, day time.Time) ([]*model.Promotion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Promotion{}
	for _, p := range r.s.promotions {
		if !p.ActiveOn(day) {
			continue
		}
		cp := *p
		if p.BrandID != nil {
			cp.Brand = r.brandLocked(*p.BrandID)
		}
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *CatalogRepo) brandLocked(id int) *model.Brand {
	for _, b := range r.s.brands {
		if b.ID == id {
			cp := *b
			return &cp
		}
	}
	return nil
}

type RedemptionRepo struct{ s *Store }

func NewRedemptionRepo(s *Store) *RedemptionRepo { return &RedemptionRepo{s: s} }

// ListByUser reports pending vouchers past expiry as expired.
func (r *RedemptionRepo) ListByUser(ctx context.Context, userID string) ([]*model.Redemption, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	out := []*model.Redemption{}
	for i := len(r.s.redemptions) - 1; i >= 0; i-- {
		red := r.s.redemptions[i]
		if red.UserID != userID {
			continue
		}
		cp := *red
		if cp.Expired(now) {
			cp.Status = model.RedemptionStatusExpired
		}
		if rw, ok := r.s.rewards[red.RewardID]; ok {
			rc := *rw
			cp.Reward = &rc
		}
		out = append(out, &cp)
	}
	return out, nil
}
