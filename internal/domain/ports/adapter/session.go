package adapter

import (
	"context"

	"uplus-loyalty/internal/domain/model"
)

// AuthListener receives session-change notifications. session is nil on sign-out.
type AuthListener func(ctx context.Context, event model.AuthEvent, session *model.Session)

// SignUpResult carries what the provider returned for a sign-up. Session is
// nil when the account still awaits confirmation.
type SignUpResult struct {
	User    *model.User
	Session *model.Session
}

// SessionGateway is the hex port for the hosted auth provider.
type SessionGateway interface {
	// GetSession returns the current session or nil.
	GetSession(ctx context.Context) (*model.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	// RefreshSession exchanges the refresh token and emits TOKEN_REFRESHED.
	RefreshSession(ctx context.Context) (*model.Session, error)
	// OnAuthStateChange registers fn and returns a function that removes it.
	OnAuthStateChange(fn AuthListener) (unsubscribe func())
}
