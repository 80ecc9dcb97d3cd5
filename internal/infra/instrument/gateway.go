// Package instrument wraps domain ports with Prometheus accounting so the
// use cases stay free of metrics.
package instrument

import (
	"context"
	"errors"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/infra/metrics"
)

var _ adapter.SessionGateway = (*Gateway)(nil)

type Gateway struct {
	adapter.SessionGateway
}

func NewGateway(inner adapter.SessionGateway) *Gateway {
	return &Gateway{SessionGateway: inner}
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	s, err := g.SessionGateway.SignInWithPassword(ctx, email, password)
	metrics.IncSignIn(result(err))
	return s, err
}

func (g *Gateway) RefreshSession(ctx context.Context) (*model.Session, error) {
	s, err := g.SessionGateway.RefreshSession(ctx)
	metrics.IncSessionRefresh(result(err))
	return s, err
}

// OnAuthStateChange counts every event delivered to fn.
func (g *Gateway) OnAuthStateChange(fn adapter.AuthListener) func() {
	return g.SessionGateway.OnAuthStateChange(func(ctx context.Context, event model.AuthEvent, s *model.Session) {
		metrics.IncAuthEvent(string(event))
		fn(ctx, event, s)
	})
}

func result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrAuthentication):
		return "rejected"
	case errors.Is(err, domain.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
