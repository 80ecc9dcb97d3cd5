package model

import (
	"strings"
	"time"
)

// User is the authenticated identity owned by the session gateway.
// Metadata carries provider-side user_metadata (display_name, avatar_url).
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// MetaString returns a non-empty string metadata value or "".
func (u *User) MetaString(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata[key].(string)
	return strings.TrimSpace(s)
}

// EmailLocalPart returns the part of the email before '@'.
func (u *User) EmailLocalPart() string {
	if u == nil || u.Email == "" {
		return ""
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Session is an authentication session issued by the provider.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

func (s *Session) IsZero() bool { return s == nil || s.AccessToken == "" }

// ExpiresWithin reports whether the session expires before now+d.
// A session without a known expiry never reports as expiring.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

// AuthEvent is a session-change notification emitted by the gateway.
type AuthEvent string

const (
	AuthEventSignedIn       AuthEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)
