package model

import (
	"strings"
	"time"

	"uplus-loyalty/internal/domain"
)

// PointsSource enumerates what caused a ledger entry.
type PointsSource string

const (
	PointsSourcePurchase   PointsSource = "purchase"
	PointsSourceManual     PointsSource = "manual"
	PointsSourceReferral   PointsSource = "referral"
	PointsSourcePromo      PointsSource = "promo"
	PointsSourceRedemption PointsSource = "redemption"
)

func (s PointsSource) Valid() bool {
	switch s {
	case PointsSourcePurchase, PointsSourceManual, PointsSourceReferral, PointsSourcePromo, PointsSourceRedemption:
		return true
	}
	return false
}

const (
	WelcomeBonusReason = "Welcome bonus"
	WelcomeBonusSource = PointsSourceManual
)

// LedgerEntry is one append-only points-ledger row.
type LedgerEntry struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Delta     int64        `json:"delta"`
	Reason    string       `json:"reason"`
	Source    PointsSource `json:"source"`
	RefID     *string      `json:"ref_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewLedgerEntry validates and constructs an entry; the store assigns ID and CreatedAt.
func NewLedgerEntry(userID string, delta int64, reason string, source PointsSource) (*LedgerEntry, error) {
	if userID == "" {
		return nil, &domain.ValidationError{Field: "user_id", Message: "required"}
	}
	if delta == 0 {
		return nil, &domain.ValidationError{Field: "delta", Message: "must not be zero"}
	}
	if strings.TrimSpace(reason) == "" {
		return nil, &domain.ValidationError{Field: "reason", Message: "required"}
	}
	if !source.Valid() {
		return nil, &domain.ValidationError{Field: "source", Message: "unknown source " + string(source)}
	}
	return &LedgerEntry{UserID: userID, Delta: delta, Reason: reason, Source: source}, nil
}

// NewWelcomeBonus is the single bonus entry granted at account creation.
func NewWelcomeBonus(userID string, amount int64) (*LedgerEntry, error) {
	return NewLedgerEntry(userID, amount, WelcomeBonusReason, WelcomeBonusSource)
}
