package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ MemberSession = (*AccountManager)(nil)

// MemberSession is the read side of the account state that other use cases
// depend on.
type MemberSession interface {
	User() *model.User
	Profile() *model.Profile
	RefreshProfile(ctx context.Context) error
}

type SessionStatus string

const (
	StatusUninitialized   SessionStatus = "UNINITIALIZED"
	StatusInitializing    SessionStatus = "INITIALIZING"
	StatusAuthenticated   SessionStatus = "AUTHENTICATED"
	StatusUnauthenticated SessionStatus = "UNAUTHENTICATED"
)

// AccountOptions are the loyalty rules fixed at construction time.
type AccountOptions struct {
	WelcomeBonus      int64
	DefaultTierID     int
	BonusRefreshDelay time.Duration
	// AfterFunc schedules f after d. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
}

// Timer is the part of *time.Timer the manager needs.
type Timer interface {
	Stop() bool
}

func DefaultAccountOptions() AccountOptions {
	return AccountOptions{
		WelcomeBonus:      100,
		DefaultTierID:     1,
		BonusRefreshDelay: time.Second,
	}
}

// AccountSnapshot is an immutable view of the account state.
type AccountSnapshot struct {
	Status        SessionStatus  `json:"status"`
	Session       *model.Session `json:"-"`
	User          *model.User    `json:"user"`
	Profile       *model.Profile `json:"profile"`
	Tiers         []*model.Tier  `json:"tiers"`
	Loading       bool           `json:"loading"`
	Initialized   bool           `json:"initialized"`
	SignedIn      bool           `json:"signed_in"`
	ProfileLoaded bool           `json:"profile_loaded"`
	LastError     string         `json:"last_error,omitempty"`
}

// AccountManager owns the member session, identity, profile and tier catalog
// for one process. State is mutated only through its methods.
type AccountManager struct {
	gateway  adapter.SessionGateway
	procs    adapter.RemoteProcedures
	profiles repository.ProfileRepository
	ledger   repository.LedgerRepository
	tm       repository.TransactionManager
	catalog  *TierCatalog
	log      *zerolog.Logger
	opts     AccountOptions

	bgCtx    context.Context
	bgCancel context.CancelFunc

	mu          sync.RWMutex
	status      SessionStatus
	session     *model.Session
	user        *model.User
	profile     *model.Profile
	loading     bool
	initialized bool
	lastErr     error
	unsubscribe func()
	timers      []Timer
	observers   map[int]func(AccountSnapshot)
	nextObs     int
}

func NewAccountManager(
	gateway adapter.SessionGateway,
	procs adapter.RemoteProcedures,
	profiles repository.ProfileRepository,
	ledger repository.LedgerRepository,
	tm repository.TransactionManager,
	catalog *TierCatalog,
	opts AccountOptions,
	logger *zerolog.Logger,
) *AccountManager {
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if opts.DefaultTierID <= 0 {
		opts.DefaultTierID = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AccountManager{
		gateway:   gateway,
		procs:     procs,
		profiles:  profiles,
		ledger:    ledger,
		tm:        tm,
		catalog:   catalog,
		log:       logger,
		opts:      opts,
		bgCtx:     ctx,
		bgCancel:  cancel,
		status:    StatusUninitialized,
		observers: make(map[int]func(AccountSnapshot)),
	}
}

// Initialize loads the tier catalog and the current session, then subscribes
// to session changes. It never fails and only runs once.
func (m *AccountManager) Initialize(ctx context.Context) {
	defer logging.TraceDuration(m.log, "AccountManager.Initialize")()

	m.mu.Lock()
	if m.status != StatusUninitialized {
		m.mu.Unlock()
		return
	}
	m.status = StatusInitializing
	m.loading = true
	m.mu.Unlock()
	m.publish()

	m.catalog.Load(ctx)

	sess, err := m.gateway.GetSession(ctx)
	if err != nil {
		m.log.Error().Err(err).Str("component", "account").Msg("get session failed")
		sess = nil
	}

	m.mu.Lock()
	m.session = sess
	m.user = sessionUser(sess)
	m.mu.Unlock()

	if m.User() != nil {
		_ = m.RefreshProfile(ctx)
	}

	m.mu.Lock()
	if m.user != nil {
		m.status = StatusAuthenticated
	} else {
		m.status = StatusUnauthenticated
	}
	m.initialized = true
	m.loading = false
	m.unsubscribe = m.gateway.OnAuthStateChange(m.handleAuthEvent)
	m.mu.Unlock()
	m.publish()
}

func (m *AccountManager) handleAuthEvent(ctx context.Context, event model.AuthEvent, sess *model.Session) {
	log := m.log.With().Str("component", "account").Str("event", string(event)).Logger()
	log.Debug().Msg("auth state changed")

	user := sessionUser(sess)
	m.mu.Lock()
	m.session = sess
	m.setUserLocked(user)
	if event == model.AuthEventSignedOut {
		m.profile = nil
	}
	m.mu.Unlock()
	m.publish()

	if user != nil && (event == model.AuthEventSignedIn || event == model.AuthEventTokenRefreshed) {
		_ = m.RefreshProfile(ctx)
	}
}

// SignIn authenticates with email and password. It does not load the profile;
// that happens when the gateway reports SIGNED_IN.
func (m *AccountManager) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	defer logging.TraceDuration(m.log, "AccountManager.SignIn")()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &domain.ValidationError{Field: "credentials", Message: "email and password are required"}
	}

	m.beginOp()
	sess, err := m.gateway.SignInWithPassword(ctx, email, password)
	if err == nil && sess.IsZero() {
		err = &domain.AuthenticationError{Message: "provider returned no session"}
	}
	if err != nil {
		aerr := asAuthError(err)
		m.endOp(aerr)
		return nil, aerr
	}

	m.mu.Lock()
	m.session = sess
	m.setUserLocked(sessionUser(sess))
	m.loading = false
	m.mu.Unlock()
	m.publish()
	return sess, nil
}

// SignUp registers a new member. When the provider confirms the account
// immediately, the profile and welcome bonus are created inline.
func (m *AccountManager) SignUp(ctx context.Context, email, password, displayName string) (*model.User, error) {
	defer logging.TraceDuration(m.log, "AccountManager.SignUp")()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &domain.ValidationError{Field: "credentials", Message: "email and password are required"}
	}
	displayName = strings.TrimSpace(displayName)

	var meta map[string]any
	if displayName != "" {
		meta = map[string]any{"display_name": displayName}
	}

	m.beginOp()
	res, err := m.gateway.SignUp(ctx, email, password, meta)
	if err != nil {
		aerr := asAuthError(err)
		m.endOp(aerr)
		return nil, aerr
	}
	if res == nil || res.User.IsZero() {
		aerr := &domain.AuthenticationError{Message: "provider returned no user"}
		m.endOp(aerr)
		return nil, aerr
	}

	if !res.Session.IsZero() {
		m.mu.Lock()
		m.session = res.Session
		m.setUserLocked(res.User)
		m.mu.Unlock()

		if _, err := m.CreateUserProfile(ctx, res.User, displayName); err != nil {
			m.log.Error().Err(err).Str("component", "account").
				Str("user_id", res.User.ID).Msg("profile creation after sign-up failed")
		}
	}

	m.endOp(nil)
	return res.User, nil
}

// SignOut always clears the local session, user and profile. Remote failures
// are logged only.
func (m *AccountManager) SignOut(ctx context.Context) {
	defer logging.TraceDuration(m.log, "AccountManager.SignOut")()

	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	if err := m.gateway.SignOut(ctx); err != nil {
		m.log.Warn().Err(err).Str("component", "account").Msg("remote sign-out failed")
	}

	m.mu.Lock()
	m.session = nil
	m.user = nil
	m.profile = nil
	m.loading = false
	if m.initialized {
		m.status = StatusUnauthenticated
	}
	m.mu.Unlock()
	m.publish()
}

// CreateUserProfile upserts the member's profile on the default tier with zero
// points and awards the welcome bonus once per member. The profile is
// re-fetched after BonusRefreshDelay so the bonus shows in the balance.
func (m *AccountManager) CreateUserProfile(ctx context.Context, user *model.User, displayName string) (*model.Profile, error) {
	defer logging.TraceDuration(m.log, "AccountManager.CreateUserProfile")()

	p, err := model.NewMemberProfile(user, displayName, m.opts.DefaultTierID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	var (
		stored  *model.Profile
		awarded bool
	)
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err = m.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		// the manager may re-run fn after a serialization failure
		stored, awarded = nil, false
		var err error
		stored, err = m.profiles.Upsert(ctx, tx, p)
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		if m.opts.WelcomeBonus <= 0 {
			return nil
		}
		exists, err := m.ledger.HasEntry(ctx, tx, user.ID, model.WelcomeBonusReason, model.WelcomeBonusSource)
		if err != nil {
			return fmt.Errorf("check welcome bonus: %w", err)
		}
		if exists {
			return nil
		}
		bonus, err := model.NewWelcomeBonus(user.ID, m.opts.WelcomeBonus)
		if err != nil {
			return err
		}
		if _, err := m.ledger.Insert(ctx, tx, bonus); err != nil {
			return fmt.Errorf("insert welcome bonus: %w", err)
		}
		awarded = true
		return nil
	})
	if err != nil {
		m.log.Error().Err(err).Str("component", "account").Str("user_id", user.ID).Msg("profile creation failed")
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
		m.publish()
		return nil, err
	}

	m.mu.Lock()
	if m.user == nil || m.user.ID == user.ID {
		m.profile = stored.Clone()
	}
	m.loading = false
	if awarded {
		m.timers = append(m.timers, m.opts.AfterFunc(m.opts.BonusRefreshDelay, func() {
			if err := m.RefreshProfile(m.bgCtx); err != nil {
				m.log.Warn().Err(err).Str("component", "account").Msg("post-bonus refresh failed")
			}
		}))
	}
	m.mu.Unlock()
	m.publish()

	if awarded {
		m.log.Info().Str("user_id", user.ID).Int64("points", m.opts.WelcomeBonus).Msg("welcome bonus awarded")
	} else {
		m.log.Debug().Str("user_id", user.ID).Msg("welcome bonus already granted")
	}
	return stored.Clone(), nil
}

// UpdateProfile applies a partial update for the signed-in member and caches
// the row returned by the server. Concurrent calls race; the last response wins.
func (m *AccountManager) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.Profile, error) {
	defer logging.TraceDuration(m.log, "AccountManager.UpdateProfile")()

	user := m.User()
	if user == nil {
		return nil, &domain.NotAuthenticatedError{Op: "update profile"}
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	p, err := m.profiles.Update(ctx, repository.NoTX, user.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	m.mu.Lock()
	if m.user != nil && m.user.ID == user.ID {
		m.profile = p.Clone()
	}
	m.mu.Unlock()
	m.publish()
	return p.Clone(), nil
}

// RefreshProfile re-reads the signed-in member's profile with its tier. It is
// a no-op without a user. On failure the cached profile is kept and a
// *domain.ProfileFetchError is returned for information only.
func (m *AccountManager) RefreshProfile(ctx context.Context) error {
	defer logging.TraceDuration(m.log, "AccountManager.RefreshProfile")()

	user := m.User()
	if user == nil {
		return nil
	}

	p, err := m.profiles.FindByID(ctx, repository.NoTX, user.ID)
	if err != nil {
		m.log.Warn().Err(err).Str("component", "account").Str("user_id", user.ID).Msg("profile fetch failed")
		return &domain.ProfileFetchError{UserID: user.ID, Err: err}
	}

	m.mu.Lock()
	// the member may have signed out while the read was in flight
	if m.user != nil && m.user.ID == user.ID {
		m.profile = p.Clone()
	}
	m.mu.Unlock()
	m.publish()
	return nil
}

// GenerateMemberQRCode rotates the member QR token, refreshes the profile and
// returns the new payload for immediate display.
func (m *AccountManager) GenerateMemberQRCode(ctx context.Context) (string, error) {
	defer logging.TraceDuration(m.log, "AccountManager.GenerateMemberQRCode")()

	user := m.User()
	if user == nil {
		return "", &domain.NotAuthenticatedError{Op: "generate member qr"}
	}

	token, err := m.procs.GenerateMemberQRToken(ctx, user.ID)
	if err != nil {
		m.log.Error().Err(err).Str("component", "account").Msg("qr generation failed")
		return "", fmt.Errorf("generate member qr: %w", err)
	}

	_ = m.RefreshProfile(ctx)
	return token, nil
}

func (m *AccountManager) CurrentTier() *model.Tier {
	p := m.Profile()
	if p == nil {
		return nil
	}
	return m.catalog.CurrentTier(p.Points)
}

func (m *AccountManager) NextTier() *model.Tier {
	p := m.Profile()
	if p == nil {
		return nil
	}
	return m.catalog.NextTier(p.Points)
}

func (m *AccountManager) PointsToNextTier() int64 {
	p := m.Profile()
	if p == nil {
		return 0
	}
	return m.catalog.PointsToNextTier(p.Points)
}

func (m *AccountManager) Catalog() *TierCatalog { return m.catalog }

func (m *AccountManager) User() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *AccountManager) Profile() *model.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile.Clone()
}

func (m *AccountManager) Session() *model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

func (m *AccountManager) SignedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

func (m *AccountManager) ProfileLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile != nil
}

func (m *AccountManager) Status() SessionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *AccountManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *AccountManager) ClearError() {
	m.mu.Lock()
	m.lastErr = nil
	m.mu.Unlock()
	m.publish()
}

func (m *AccountManager) Snapshot() AccountSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
func (m *AccountManager) Subscribe(fn func(AccountSnapshot)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Close detaches from the session gateway and stops pending refreshes.
func (m *AccountManager) Close() {
	m.bgCancel()
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (m *AccountManager) beginOp() {
	m.mu.Lock()
	m.loading = true
	m.lastErr = nil
	m.mu.Unlock()
	m.publish()
}

func (m *AccountManager) endOp(err error) {
	m.mu.Lock()
	m.loading = false
	if err != nil {
		m.lastErr = err
	}
	m.mu.Unlock()
	m.publish()
}

// setUserLocked swaps the identity and drops a profile belonging to someone else.
func (m *AccountManager) setUserLocked(user *model.User) {
	if user == nil || m.user == nil || m.user.ID != user.ID {
		m.profile = nil
	}
	m.user = user
	if m.initialized || m.status == StatusAuthenticated || m.status == StatusUnauthenticated {
		if user != nil {
			m.status = StatusAuthenticated
		} else {
			m.status = StatusUnauthenticated
		}
	}
}

func (m *AccountManager) snapshotLocked() AccountSnapshot {
	s := AccountSnapshot{
		Status:        m.status,
		Profile:       m.profile.Clone(),
		Tiers:         m.catalog.Tiers(),
		Loading:       m.loading,
		Initialized:   m.initialized,
		SignedIn:      m.user != nil,
		ProfileLoaded: m.profile != nil,
	}
	if m.session != nil {
		sess := *m.session
		s.Session = &sess
	}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

func (m *AccountManager) publish() {
	m.mu.RLock()
	if len(m.observers) == 0 {
		m.mu.RUnlock()
		return
	}
	snap := m.snapshotLocked()
	fns := make([]func(AccountSnapshot), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func sessionUser(s *model.Session) *model.User {
	if s == nil || s.User.IsZero() {
		return nil
	}
	return s.User
}

func asAuthError(err error) error {
	var aerr *domain.AuthenticationError
	if errors.As(err, &aerr) {
		return aerr
	}
	return &domain.AuthenticationError{Message: err.Error(), Err: err}
}
