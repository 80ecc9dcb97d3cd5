package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
)

var _ adapter.SessionGateway = (*AuthGateway)(nil)

// SessionStore persists the current session between process restarts.
// Load returns domain.ErrNotFound when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Clear(ctx context.Context) error
}

// AuthGateway is a GoTrue-backed session gateway holding one member session.
type AuthGateway struct {
	client *Client
	store  SessionStore
	log    *zerolog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	session   *model.Session
	restored  bool
	listeners map[int]adapter.AuthListener
	nextID    int
}

// NewAuthGateway builds a gateway. store may be nil, in which case the
// session lives in memory only.
func NewAuthGateway(client *Client, store SessionStore, logger *zerolog.Logger) *AuthGateway {
	return &AuthGateway{
		client:    client,
		store:     store,
		log:       logger,
		now:       time.Now,
		listeners: make(map[int]adapter.AuthListener),
	}
}

// GetSession returns the in-memory session, restoring it from the store on
// first use. An expired restored session is refreshed once; if that fails the
// member is treated as signed out.
func (g *AuthGateway) GetSession(ctx context.Context) (*model.Session, error) {
	g.mu.Lock()
	if g.restored || g.store == nil {
		s := g.session
		g.mu.Unlock()
		return s, nil
	}
	g.restored = true
	g.mu.Unlock()

	s, err := g.store.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if s.User == nil {
		s.User = userFromToken(s.AccessToken)
	}
	g.setSession(s)

	if s.ExpiresWithin(g.now(), 0) {
		refreshed, err := g.refresh(ctx, s.RefreshToken)
		if err != nil {
			g.log.Warn().Err(err).Msg("stored session expired and could not be refreshed")
			g.clear(ctx)
			return nil, nil
		}
		return refreshed, nil
	}
	return s, nil
}

func (g *AuthGateway) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{"email": email, "password": password}
	data, err := g.client.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	if err != nil {
		return nil, authError(err)
	}
	s, err := parseSession(data, g.now())
	if err != nil {
		return nil, authError(err)
	}
	g.setSession(s)
	g.persist(ctx, s)
	g.emit(ctx, model.AuthEventSignedIn, s)
	return s, nil
}

func (g *AuthGateway) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*adapter.SignUpResult, error) {
	body := map[string]any{"email": email, "password": password, "data": metadata}
	data, err := g.client.do(ctx, http.MethodPost, "/auth/v1/signup", "", body)
	if err != nil {
		return nil, authError(err)
	}

	res := gjson.ParseBytes(data)
	out := &adapter.SignUpResult{}
	if res.Get("access_token").Exists() {
		s, err := parseSession(data, g.now())
		if err != nil {
			return nil, authError(err)
		}
		out.Session = s
		out.User = s.User
	} else {
		// Email confirmation pending: GoTrue answers with the bare user.
		out.User = parseUser(res)
	}
	if out.User.IsZero() {
		return nil, &domain.AuthenticationError{Message: "provider returned no user"}
	}

	if out.Session != nil {
		g.setSession(out.Session)
		g.persist(ctx, out.Session)
		g.emit(ctx, model.AuthEventSignedIn, out.Session)
	}
	return out, nil
}

// SignOut revokes the session remotely and always clears it locally. The
// remote error, if any, is returned after the local state is gone.
func (g *AuthGateway) SignOut(ctx context.Context) error {
	g.mu.RLock()
	s := g.session
	g.mu.RUnlock()

	var remoteErr error
	if !s.IsZero() {
		if _, err := g.client.do(ctx, http.MethodPost, "/auth/v1/logout", s.AccessToken, nil); err != nil {
			remoteErr = fmt.Errorf("sign out: %w", err)
		}
	}
	g.clear(ctx)
	g.emit(ctx, model.AuthEventSignedOut, nil)
	return remoteErr
}

func (g *AuthGateway) RefreshSession(ctx context.Context) (*model.Session, error) {
	g.mu.RLock()
	s := g.session
	g.mu.RUnlock()
	if s == nil || s.RefreshToken == "" {
		return nil, &domain.NotAuthenticatedError{Op: "refresh session"}
	}
	return g.refresh(ctx, s.RefreshToken)
}

func (g *AuthGateway) refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	data, err := g.client.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	s, err := parseSession(data, g.now())
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	g.setSession(s)
	g.persist(ctx, s)
	g.emit(ctx, model.AuthEventTokenRefreshed, s)
	return s, nil
}

func (g *AuthGateway) OnAuthStateChange(fn adapter.AuthListener) func() {
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

// emit notifies listeners synchronously, outside the lock. Listeners get a
// context detached from the caller's cancellation.
func (g *AuthGateway) emit(ctx context.Context, event model.AuthEvent, s *model.Session) {
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

func (g *AuthGateway) setSession(s *model.Session) {
	g.mu.Lock()
	g.session = s
	g.mu.Unlock()
}

func (g *AuthGateway) persist(ctx context.Context, s *model.Session) {
	if g.store == nil {
		return
	}
	if err := g.store.Save(ctx, s); err != nil {
		g.log.Warn().Err(err).Msg("persist session failed")
	}
}

func (g *AuthGateway) clear(ctx context.Context) {
	g.setSession(nil)
	if g.store == nil {
		return
	}
	if err := g.store.Clear(ctx); err != nil {
		g.log.Warn().Err(err).Msg("clear stored session failed")
	}
}

func authError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &domain.AuthenticationError{Message: apiErr.Message, Err: err}
	}
	return &domain.AuthenticationError{Message: err.Error(), Err: err}
}

// parseSession reads a GoTrue token response. Missing expiry fields fall back
// to the access token's exp claim.
func parseSession(data []byte, now time.Time) (*model.Session, error) {
	res := gjson.ParseBytes(data)
	s := &model.Session{
		AccessToken:  res.Get("access_token").String(),
		RefreshToken: res.Get("refresh_token").String(),
		User:         parseUser(res.Get("user")),
	}
	if s.AccessToken == "" {
		return nil, errors.New("response carries no access token")
	}
	switch {
	case res.Get("expires_at").Int() > 0:
		s.ExpiresAt = time.Unix(res.Get("expires_at").Int(), 0)
	case res.Get("expires_in").Int() > 0:
		s.ExpiresAt = now.Add(time.Duration(res.Get("expires_in").Int()) * time.Second)
	default:
		s.ExpiresAt = tokenExpiry(s.AccessToken)
	}
	if s.User.IsZero() {
		s.User = userFromToken(s.AccessToken)
	}
	return s, nil
}

func parseUser(res gjson.Result) *model.User {
	if !res.Exists() || res.Get("id").String() == "" {
		return nil
	}
	u := &model.User{
		ID:    res.Get("id").String(),
		Email: res.Get("email").String(),
	}
	if md, ok := res.Get("user_metadata").Value().(map[string]interface{}); ok {
		u.Metadata = md
	}
	if t, err := time.Parse(time.RFC3339Nano, res.Get("created_at").String()); err == nil {
		u.CreatedAt = t
	}
	return u
}

// tokenClaims decodes the JWT payload without verifying the signature; the
// token came from the provider and is only inspected for scheduling.
func tokenClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func tokenExpiry(token string) time.Time {
	claims := tokenClaims(token)
	if claims == nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func userFromToken(token string) *model.User {
	claims := tokenClaims(token)
	if claims == nil {
		return nil
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil
	}
	u := &model.User{ID: sub}
	u.Email, _ = claims["email"].(string)
	if md, ok := claims["user_metadata"].(map[string]interface{}); ok {
		u.Metadata = md
	}
	return u
}
