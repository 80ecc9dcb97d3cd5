package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"uplus-loyalty/internal/domain/ports/adapter"
)

// SessionRefresher periodically exchanges the refresh token shortly before
// the access token expires. The gateway emits TOKEN_REFRESHED, which makes
// the account manager reload the profile.
type SessionRefresher struct {
	interval time.Duration
	leeway   time.Duration
	gateway  adapter.SessionGateway
	log      *zerolog.Logger
	now      func() time.Time
}

func NewSessionRefresher(interval, leeway time.Duration, gateway adapter.SessionGateway, logger *zerolog.Logger) *SessionRefresher {
	refLog := logger.With().Str("component", "SessionRefresher").Logger()
	return &SessionRefresher{
		interval: interval,
		leeway:   leeway,
		gateway:  gateway,
		log:      &refLog,
		now:      time.Now,
	}
}

func (w *SessionRefresher) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("leeway", w.leeway).Msg("Starting session refresher")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session refresher")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick refreshes the session if it expires within the leeway. It reports
// whether a refresh was attempted.
func (w *SessionRefresher) tick(ctx context.Context) bool {
	s, err := w.gateway.GetSession(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("read session failed")
		return false
	}
	if s.IsZero() || !s.ExpiresWithin(w.now(), w.leeway) {
		return false
	}
	if _, err := w.gateway.RefreshSession(ctx); err != nil {
		w.log.Warn().Err(err).Time("expires_at", s.ExpiresAt).Msg("session refresh failed")
		return true
	}
	w.log.Debug().Msg("session refreshed")
	return true
}
