package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrCacheMiss          = errors.New("cache miss")

	// Member account errors
	ErrAuthentication     = errors.New("authentication failed")
	ErrNotAuthenticated   = errors.New("no authenticated member")
	ErrProfileNotLoaded   = errors.New("member profile not loaded")
	ErrProfileFetch       = errors.New("profile fetch failed")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrRedemptionFailed   = errors.New("redemption failed")
	ErrRedemptionState    = errors.New("redemption is not awaiting confirmation")
)

// AuthenticationError is returned when the auth provider rejects credentials
// or fails while signing a member in or up.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return ErrAuthentication.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAuthentication, e.Message)
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }
func (e *AuthenticationError) Unwrap() error        { return e.Err }

// NotAuthenticatedError is returned by mutating operations attempted without
// an active member. It is always raised before any remote dispatch.
type NotAuthenticatedError struct {
	Op string
}

func (e *NotAuthenticatedError) Error() string {
	if e.Op == "" {
		return ErrNotAuthenticated.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, ErrNotAuthenticated)
}

func (e *NotAuthenticatedError) Is(target error) bool { return target == ErrNotAuthenticated }

// InsufficientPointsError is the local affordability guard result.
// Shortfall is always Cost - Balance and strictly positive.
type InsufficientPointsError struct {
	Cost      int64
	Balance   int64
	Shortfall int64
}

func NewInsufficientPointsError(cost, balance int64) *InsufficientPointsError {
	return &InsufficientPointsError{Cost: cost, Balance: balance, Shortfall: cost - balance}
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("%s: need %d more points", ErrInsufficientPoints, e.Shortfall)
}

func (e *InsufficientPointsError) Is(target error) bool { return target == ErrInsufficientPoints }

// RedemptionError wraps a failed or empty remote redeem call.
type RedemptionError struct {
	RewardID string
	Err      error
}

func (e *RedemptionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: reward %s: empty voucher", ErrRedemptionFailed, e.RewardID)
	}
	return fmt.Sprintf("%s: reward %s: %v", ErrRedemptionFailed, e.RewardID, e.Err)
}

func (e *RedemptionError) Is(target error) bool { return target == ErrRedemptionFailed }
func (e *RedemptionError) Unwrap() error        { return e.Err }

// ProfileFetchError is non-fatal: the cached profile is kept when it occurs.
type ProfileFetchError struct {
	UserID string
	Err    error
}

func (e *ProfileFetchError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrProfileFetch, e.UserID, e.Err)
}

func (e *ProfileFetchError) Is(target error) bool { return target == ErrProfileFetch }
func (e *ProfileFetchError) Unwrap() error        { return e.Err }

// ValidationError reports a caller-side input problem. It matches ErrInvalidArgument.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }
