// Package memory is a self-contained loyalty backend for demos, local runs
// and tests. It mirrors the Postgres rules: the ledger drives balance and
// tier, balances never go negative and redemption is atomic.
package memory

import (
	"crypto/rand"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
)

// Store holds all backend state behind one mutex.
type Store struct {
	mu sync.Mutex

	tiers       []*model.Tier
	profiles    map[string]*model.Profile
	ledger      []*model.LedgerEntry
	categories  map[string]*model.RewardCategory
	rewards     map[string]*model.Reward
	redemptions []*model.Redemption
	brands      []*model.Brand
	outlets     []*model.Outlet
	promotions  []*model.Promotion
	qrTokens    map[string]string // token -> user id

	entropy io.Reader
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		profiles:   make(map[string]*model.Profile),
		categories: make(map[string]*model.RewardCategory),
		rewards:    make(map[string]*model.Reward),
		qrTokens:   make(map[string]string),
		entropy:    ulid.Monotonic(rand.Reader, 0),
		now:        time.Now,
	}
}

// WithClock replaces the store clock; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// newIDLocked returns a time-ordered ULID. Caller holds s.mu.
func (s *Store) newIDLocked() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// AddTier inserts or replaces a tier by id.
func (s *Store) AddTier(t model.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	for i, cur := range s.tiers {
		if cur.ID == t.ID {
			s.tiers[i] = &t
			return
		}
	}
	s.tiers = append(s.tiers, &t)
	sort.SliceStable(s.tiers, func(i, j int) bool {
		if s.tiers[i].MinPoints == s.tiers[j].MinPoints {
			return s.tiers[i].ID < s.tiers[j].ID
		}
		return s.tiers[i].MinPoints < s.tiers[j].MinPoints
	})
}

func (s *Store) AddRewardCategory(c model.RewardCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.Code] = &c
}

// AddReward stores r, assigning an id when empty, and returns the id.
func (s *Store) AddReward(r model.Reward) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.newIDLocked()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.rewards[r.ID] = &r
	return r.ID
}

// AddBrand stores b with the next sequential id and returns it.
func (s *Store) AddBrand(b model.Brand) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = len(s.brands) + 1
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	s.brands = append(s.brands, &b)
	return b.ID
}

func (s *Store) AddOutlet(o model.Outlet) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = len(s.outlets) + 1
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.outlets = append(s.outlets, &o)
	return o.ID
}

func (s *Store) AddPromotion(p model.Promotion) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = s.newIDLocked()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.promotions = append(s.promotions, &p)
	return p.ID
}

// appendLedgerLocked records e and applies it to the member's balance and
// tier. A delta that would take the balance below zero is rejected.
func (s *Store) appendLedgerLocked(e *model.LedgerEntry) (*model.LedgerEntry, error) {
	p, ok := s.profiles[e.UserID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if e.Reason == model.WelcomeBonusReason && e.Source == model.WelcomeBonusSource && s.hasEntryLocked(e.UserID, e.Reason, e.Source) {
		return nil, domain.ErrAlreadyExists
	}
	if p.Points+e.Delta < 0 {
		return nil, domain.NewInsufficientPointsError(-e.Delta, p.Points)
	}
	out := *e
	out.ID = s.newIDLocked()
	out.CreatedAt = s.now()
	s.ledger = append(s.ledger, &out)

	p.Points += e.Delta
	if t := s.tierForLocked(p.Points); t != nil {
		p.TierID = t.ID
	}
	cp := out
	return &cp, nil
}

func (s *Store) hasEntryLocked(userID, reason string, source model.PointsSource) bool {
	for _, e := range s.ledger {
		if e.UserID == userID && e.Reason == reason && e.Source == source {
			return true
		}
	}
	return false
}

// tierForLocked returns the highest tier whose threshold points reach.
func (s *Store) tierForLocked(points int64) *model.Tier {
	var best *model.Tier
	for _, t := range s.tiers {
		if t.MinPoints <= points && (best == nil || t.MinPoints > best.MinPoints) {
			best = t
		}
	}
	return best
}

func (s *Store) tierByIDLocked(id int) *model.Tier {
	for _, t := range s.tiers {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// profileViewLocked returns a copy of the profile joined with its tier.
func (s *Store) profileViewLocked(p *model.Profile) *model.Profile {
	cp := p.Clone()
	if t := s.tierByIDLocked(p.TierID); t != nil {
		tc := *t
		cp.Tier = &tc
	}
	return cp
}
