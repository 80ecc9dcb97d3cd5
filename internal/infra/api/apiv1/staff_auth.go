package apiv1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/infra/logging"
)

const staffIssuer = "uplus-loyalty"

// StaffAuth mints and checks the HS256 bearer tokens carried by counter staff.
type StaffAuth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStaffAuth(secret string, ttl time.Duration) *StaffAuth {
	return &StaffAuth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type StaffClaims struct {
	Outlet string `json:"outlet,omitempty"`
	jwt.RegisteredClaims
}

// Mint issues a token for staffID, optionally bound to an outlet.
func (a *StaffAuth) Mint(staffID, outlet string) (string, error) {
	if strings.TrimSpace(staffID) == "" {
		return "", &domain.ValidationError{Field: "staff_id", Message: "required"}
	}
	now := a.now()
	claims := StaffClaims{
		Outlet: outlet,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    staffIssuer,
			Subject:   staffID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseFromRequest reads "Authorization: Bearer <jwt>".
func (a *StaffAuth) ParseFromRequest(r *http.Request) (*StaffClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errors.New("missing bearer token")
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *StaffAuth) parse(tok string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(staffIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Require rejects requests without a valid staff token.
func (a *StaffAuth) Require(h *Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				logging.With(r.Context(), h.log).Info().Err(err).
					Str("authorization", logging.Redact(r.Header.Get("Authorization"), h.DevLogs)).
					Msg("staff token rejected")
				h.fail(w, r, &domain.NotAuthenticatedError{Op: "staff operation"})
				return
			}
			logging.With(r.Context(), h.log).Debug().
				Str("staff_id", claims.Subject).Str("outlet", claims.Outlet).Msg("staff request")
			next.ServeHTTP(w, r)
		})
	}
}
