//go:build !integration

package usecase

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func standardTiers() []*model.Tier {
	return []*model.Tier{
		{ID: 1, Name: "Bronze", MinPoints: 0},
		{ID: 2, Name: "Silver", MinPoints: 500},
		{ID: 3, Name: "Gold", MinPoints: 1500},
	}
}

// --- tiers ---

type mockTierRepo struct {
	tiers       []*model.Tier
	calls       int
	ListAllFunc func(ctx context.Context) ([]*model.Tier, error)
}

func (m *mockTierRepo) ListAll(ctx context.Context) ([]*model.Tier, error) {
	m.calls++
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return m.tiers, nil
}

// --- profiles + ledger share one store so ledger inserts move the balance ---

type memStore struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	entries  []*model.LedgerEntry
	tiers    []*model.Tier
}

func newMemStore(tiers []*model.Tier) *memStore {
	return &memStore{profiles: make(map[string]*model.Profile), tiers: tiers}
}

func (s *memStore) tierFor(id int) *model.Tier {
	for _, t := range s.tiers {
		if t.ID == id {
			cp := *t
			return &cp
		}
	}
	return nil
}

func (s *memStore) addPoints(userID string, delta int64) {
	if p, ok := s.profiles[userID]; ok {
		p.Points += delta
	}
}

type memProfileRepo struct {
	store *memStore
	reads int

	FindByIDFunc func(ctx context.Context, id string) (*model.Profile, error)
	UpdateFunc   func(ctx context.Context, id string, upd model.ProfileUpdate) (*model.Profile, error)
	UpsertFunc   func(ctx context.Context, p *model.Profile) (*model.Profile, error)
}

func (r *memProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	r.store.mu.Lock()
	r.reads++
	r.store.mu.Unlock()
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, id)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := p.Clone()
	cp.Tier = r.store.tierFor(cp.TierID)
	return cp, nil
}

func (r *memProfileRepo) Update(ctx context.Context, tx repository.Tx, id string, upd model.ProfileUpdate) (*model.Profile, error) {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, id, upd)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.DisplayName != nil {
		n := *upd.DisplayName
		p.DisplayName = &n
	}
	if upd.AvatarURL != nil {
		a := *upd.AvatarURL
		p.AvatarURL = &a
	}
	return p.Clone(), nil
}

func (r *memProfileRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Profile) (*model.Profile, error) {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, p)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if cur, ok := r.store.profiles[p.ID]; ok {
		cur.DisplayName = p.DisplayName
		cur.AvatarURL = p.AvatarURL
		return cur.Clone(), nil
	}
	r.store.profiles[p.ID] = p.Clone()
	return p.Clone(), nil
}

type memLedgerRepo struct {
	store *memStore

	InsertFunc func(ctx context.Context, e *model.LedgerEntry) (*model.LedgerEntry, error)
}

func (r *memLedgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) (*model.LedgerEntry, error) {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, e)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *e
	cp.ID = time.Now().Format("150405.000000000")
	cp.CreatedAt = time.Now()
	r.store.entries = append(r.store.entries, &cp)
	r.store.addPoints(e.UserID, e.Delta)
	return &cp, nil
}

func (r *memLedgerRepo) HasEntry(ctx context.Context, tx repository.Tx, userID, reason string, source model.PointsSource) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.entries {
		if e.UserID == userID && e.Reason == reason && e.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (r *memLedgerRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.LedgerEntry
	for i := len(r.store.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.store.entries[i]; e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) entriesFor(userID string) []*model.LedgerEntry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range r.store.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

type mockRedemptionRepo struct {
	items []*model.Redemption
	calls int
}

func (r *mockRedemptionRepo) ListByUser(ctx context.Context, userID string) ([]*model.Redemption, error) {
	r.calls++
	var out []*model.Redemption
	for _, it := range r.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- tx manager ---

type mockTxManager struct {
	calls int

	WithTxFunc func(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, fn)
	}
	return fn(ctx, nil)
}

// --- gateway ---

type mockGateway struct {
	mu        sync.Mutex
	session   *model.Session
	listeners map[int]adapter.AuthListener
	nextID    int
	signOuts  int

	GetSessionFunc func(ctx context.Context) (*model.Session, error)
	SignInFunc     func(ctx context.Context, email, password string) (*model.Session, error)
	SignUpFunc     func(ctx context.Context, email, password string, meta map[string]any) (*adapter.SignUpResult, error)
	SignOutFunc    func(ctx context.Context) error
	// EmitOnSignIn reproduces providers that notify listeners during sign-in.
	EmitOnSignIn bool
}

func newMockGateway() *mockGateway {
	return &mockGateway{listeners: make(map[int]adapter.AuthListener)}
}

func (g *mockGateway) GetSession(ctx context.Context) (*model.Session, error) {
	if g.GetSessionFunc != nil {
		return g.GetSessionFunc(ctx)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session, nil
}

func (g *mockGateway) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if g.SignInFunc == nil {
		return nil, &domain.AuthenticationError{Message: "not configured"}
	}
	s, err := g.SignInFunc(ctx, email, password)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.session = s
	g.mu.Unlock()
	if g.EmitOnSignIn {
		g.Emit(ctx, model.AuthEventSignedIn, s)
	}
	return s, nil
}

func (g *mockGateway) SignUp(ctx context.Context, email, password string, meta map[string]any) (*adapter.SignUpResult, error) {
	if g.SignUpFunc == nil {
		return nil, &domain.AuthenticationError{Message: "not configured"}
	}
	return g.SignUpFunc(ctx, email, password, meta)
}

func (g *mockGateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	g.signOuts++
	g.session = nil
	g.mu.Unlock()
	if g.SignOutFunc != nil {
		return g.SignOutFunc(ctx)
	}
	return nil
}

func (g *mockGateway) RefreshSession(ctx context.Context) (*model.Session, error) {
	g.mu.Lock()
	s := g.session
	g.mu.Unlock()
	g.Emit(ctx, model.AuthEventTokenRefreshed, s)
	return s, nil
}

func (g *mockGateway) OnAuthStateChange(fn adapter.AuthListener) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *mockGateway) Emit(ctx context.Context, ev model.AuthEvent, s *model.Session) {
	g.mu.Lock()
	fns := make([]adapter.AuthListener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(ctx, ev, s)
	}
}

func (g *mockGateway) listenerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}

// --- remote procedures ---

type mockProcs struct {
	mu          sync.Mutex
	redeemCalls int
	qrCalls     int

	RedeemRewardFunc func(ctx context.Context, userID, rewardID string) (string, error)
	GenerateQRFunc   func(ctx context.Context, userID string) (string, error)
	ValidateQRFunc   func(ctx context.Context, token string) (*model.MemberQRValidation, error)
}

func (p *mockProcs) RedeemReward(ctx context.Context, userID, rewardID string) (string, error) {
	p.mu.Lock()
	p.redeemCalls++
	p.mu.Unlock()
	if p.RedeemRewardFunc != nil {
		return p.RedeemRewardFunc(ctx, userID, rewardID)
	}
	return "", nil
}

func (p *mockProcs) GenerateMemberQRToken(ctx context.Context, userID string) (string, error) {
	p.mu.Lock()
	p.qrCalls++
	p.mu.Unlock()
	if p.GenerateQRFunc != nil {
		return p.GenerateQRFunc(ctx, userID)
	}
	return "QR-" + userID, nil
}

func (p *mockProcs) ValidateMemberQRToken(ctx context.Context, token string) (*model.MemberQRValidation, error) {
	if p.ValidateQRFunc != nil {
		return p.ValidateQRFunc(ctx, token)
	}
	return &model.MemberQRValidation{IsValid: false}, nil
}

// --- query cache ---

type memQueryCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newMemQueryCache() *memQueryCache {
	return &memQueryCache{data: make(map[string][]byte)}
}

func (c *memQueryCache) Get(ctx context.Context, key string, dst any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return domain.ErrCacheMiss
	}
	return json.Unmarshal(b, dst)
}

func (c *memQueryCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memQueryCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.invalidated = append(c.invalidated, k)
	}
	return nil
}

func (c *memQueryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// --- timers ---

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// FireAll runs every pending, non-stopped timer synchronously.
func (c *fakeClock) FireAll() {
	c.mu.Lock()
	pending := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range pending {
		if !t.stopped {
			t.f()
		}
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// --- fixture ---

type accountFixture struct {
	store    *memStore
	gateway  *mockGateway
	procs    *mockProcs
	profiles *memProfileRepo
	ledger   *memLedgerRepo
	tiers    *mockTierRepo
	tm       *mockTxManager
	clock    *fakeClock
	manager  *AccountManager
}

func newAccountFixture() *accountFixture {
	tiers := standardTiers()
	store := newMemStore(tiers)
	f := &accountFixture{
		store:    store,
		gateway:  newMockGateway(),
		procs:    &mockProcs{},
		profiles: &memProfileRepo{store: store},
		ledger:   &memLedgerRepo{store: store},
		tiers:    &mockTierRepo{tiers: tiers},
		tm:       &mockTxManager{},
		clock:    &fakeClock{},
	}
	opts := DefaultAccountOptions()
	opts.AfterFunc = f.clock.AfterFunc
	logger := newTestLogger()
	f.manager = NewAccountManager(f.gateway, f.procs, f.profiles, f.ledger, f.tm,
		NewTierCatalog(f.tiers, logger), opts, logger)
	return f
}

func testUser(id string) *model.User {
	return &model.User{ID: id, Email: id + "@example.com"}
}

func testSession(u *model.User) *model.Session {
	return &model.Session{
		AccessToken:  "access-" + u.ID,
		RefreshToken: "refresh-" + u.ID,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         u,
	}
}

// seedProfile stores a profile with the given balance on the base tier.
func (f *accountFixture) seedProfile(id string, points int64) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	name := "member-" + id
	f.store.profiles[id] = &model.Profile{ID: id, DisplayName: &name, TierID: 1, Points: points}
}

// signedIn initializes the manager with an existing session for a member
// holding points.
func (f *accountFixture) signedIn(id string, points int64) *model.User {
	u := testUser(id)
	f.seedProfile(id, points)
	f.gateway.session = testSession(u)
	f.manager.Initialize(context.Background())
	return u
}
