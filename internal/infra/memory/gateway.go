package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/infra/logging"
)

var _ adapter.SessionGateway = (*Gateway)(nil)

const DefaultSessionTTL = time.Hour

type account struct {
	user *model.User
	hash []byte
}

// Gateway is an in-process auth provider with one current session, like a
// single device signed in to the hosted provider.
type Gateway struct {
	store *Store
	log   *zerolog.Logger
	ttl   time.Duration
	cost  int
	dev   bool

	mu        sync.RWMutex
	accounts  map[string]*account // by lower-cased email
	refresh   map[string]string   // refresh token -> user id
	session   *model.Session
	listeners map[int]adapter.AuthListener
	nextID    int
}

func NewGateway(store *Store, logger *zerolog.Logger) *Gateway {
	return &Gateway{
		store:     store,
		log:       logger,
		ttl:       DefaultSessionTTL,
		cost:      bcrypt.DefaultCost,
		accounts:  make(map[string]*account),
		refresh:   make(map[string]string),
		listeners: make(map[int]adapter.AuthListener),
	}
}

// WithDevLogs logs emails unredacted.
func (g *Gateway) WithDevLogs(dev bool) *Gateway {
	g.dev = dev
	return g
}

// WithBcryptCost lowers hashing cost for tests.
func (g *Gateway) WithBcryptCost(cost int) *Gateway {
	g.cost = cost
	return g
}

func (g *Gateway) WithSessionTTL(d time.Duration) *Gateway {
	if d > 0 {
		g.ttl = d
	}
	return g
}

func (g *Gateway) GetSession(ctx context.Context) (*model.Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session, nil
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	g.mu.RLock()
	acc, ok := g.accounts[normEmail(email)]
	g.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		g.log.Debug().Bool("known", ok).Str("email", logging.RedactEmail(email, g.dev)).Msg("sign-in rejected")
		return nil, &domain.AuthenticationError{Message: "Invalid login credentials"}
	}
	s := g.issue(acc.user)
	g.emit(ctx, model.AuthEventSignedIn, s)
	return s, nil
}

// SignUp registers a confirmed account and signs it in immediately.
func (g *Gateway) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*adapter.SignUpResult, error) {
	key := normEmail(email)
	if key == "" || len(password) < 6 {
		return nil, &domain.AuthenticationError{Message: "Password should be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return nil, &domain.AuthenticationError{Message: "could not hash password", Err: err}
	}

	g.mu.Lock()
	if _, exists := g.accounts[key]; exists {
		g.mu.Unlock()
		return nil, &domain.AuthenticationError{Message: "User already registered"}
	}
	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	u := &model.User{ID: uuid.NewString(), Email: strings.TrimSpace(email), Metadata: md, CreatedAt: time.Now()}
	g.accounts[key] = &account{user: u, hash: hash}
	g.mu.Unlock()

	s := g.issue(u)
	g.emit(ctx, model.AuthEventSignedIn, s)
	return &adapter.SignUpResult{User: u, Session: s}, nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	if g.session != nil {
		delete(g.refresh, g.session.RefreshToken)
	}
	g.session = nil
	g.mu.Unlock()
	g.emit(ctx, model.AuthEventSignedOut, nil)
	return nil
}

func (g *Gateway) RefreshSession(ctx context.Context) (*model.Session, error) {
	g.mu.Lock()
	cur := g.session
	if cur == nil {
		g.mu.Unlock()
		return nil, &domain.NotAuthenticatedError{Op: "refresh session"}
	}
	if _, ok := g.refresh[cur.RefreshToken]; !ok {
		g.mu.Unlock()
		return nil, &domain.AuthenticationError{Message: "Invalid Refresh Token"}
	}
	delete(g.refresh, cur.RefreshToken)
	g.mu.Unlock()

	s := g.issue(cur.User)
	g.emit(ctx, model.AuthEventTokenRefreshed, s)
	return s, nil
}

func (g *Gateway) OnAuthStateChange(fn adapter.AuthListener) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.listeners, id)
			g.mu.Unlock()
		})
	}
}

// issue creates and installs a new session for u.
func (g *Gateway) issue(u *model.User) *model.Session {
	g.store.mu.Lock()
	access := g.store.newIDLocked()
	refresh := g.store.newIDLocked()
	now := g.store.now()
	g.store.mu.Unlock()

	s := &model.Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: now.Add(g.ttl), User: u}
	g.mu.Lock()
	g.session = s
	g.refresh[refresh] = u.ID
	g.mu.Unlock()
	return s
}

func (g *Gateway) emit(ctx context.Context, event model.AuthEvent, s *model.Session) {
	g.mu.RLock()
	fns := make([]adapter.AuthListener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.RUnlock()

	lctx := context.WithoutCancel(ctx)
	for _, fn := range fns {
		fn(lctx, event, s)
	}
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
