package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/infra/i18n"
	"uplus-loyalty/internal/infra/logging"
	"uplus-loyalty/internal/infra/redis"
)

// Envelope is the body of every v1 response.
type Envelope struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
	Meta  Meta   `json:"meta"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"requestId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ErrTooManyAttempts is returned when a rate limit rejects the request.
var ErrTooManyAttempts = errors.New("too many attempts")

func newMeta(r *http.Request) Meta {
	return Meta{
		RequestID: logging.TraceID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func success(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, Envelope{Data: data, Meta: newMeta(r)})
}

// failure maps err to a status and a localized member-facing message.
func failure(w http.ResponseWriter, r *http.Request, tr *i18n.Translator, err error) {
	status, code := classify(err)
	msg := tr.Error(err)
	if errors.Is(err, ErrTooManyAttempts) {
		msg = tr.T("too_many_attempts")
	}
	writeJSON(w, status, Envelope{
		Error: &Error{Code: code, Message: msg, Details: details(err)},
		Meta:  newMeta(r),
	})
}

func classify(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized, "AUTHENTICATION_FAILED"
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, "NOT_AUTHENTICATED"
	case errors.Is(err, domain.ErrInsufficientPoints):
		return http.StatusPaymentRequired, "INSUFFICIENT_POINTS"
	case errors.Is(err, domain.ErrProfileNotLoaded):
		return http.StatusNotFound, "PROFILE_NOT_LOADED"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrRedemptionState), errors.Is(err, redis.ErrLockHeld):
		return http.StatusConflict, "REDEMPTION_IN_PROGRESS"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"
	case errors.Is(err, domain.ErrRedemptionFailed):
		return http.StatusBadGateway, "REDEMPTION_FAILED"
	case errors.Is(err, domain.ErrProfileFetch):
		return http.StatusBadGateway, "PROFILE_FETCH_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func details(err error) any {
	var (
		verr *domain.ValidationError
		ierr *domain.InsufficientPointsError
	)
	switch {
	case errors.As(err, &verr):
		return map[string]string{"field": verr.Field, "reason": verr.Message}
	case errors.As(err, &ierr):
		return map[string]int64{"cost": ierr.Cost, "balance": ierr.Balance, "shortfall": ierr.Shortfall}
	}
	return nil
}
