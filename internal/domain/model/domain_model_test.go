//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"uplus-loyalty/internal/domain"
)

// --- Profile Tests ---

func TestNewMemberProfile(t *testing.T) {
	t.Run("should prefer the explicit display name", func(t *testing.T) {
		u := &User{ID: "u1", Email: "ann@example.com", Metadata: map[string]any{"display_name": "Meta Ann"}}
		p, err := NewMemberProfile(u, "Ann", 1)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Name() != "Ann" {
			t.Errorf("expected display name 'Ann', got %q", p.Name())
		}
		if p.Points != 0 || p.TierID != 1 {
			t.Errorf("expected zero points on default tier, got points=%d tier=%d", p.Points, p.TierID)
		}
	})

	t.Run("should fall back to metadata, then email, then Member", func(t *testing.T) {
		withMeta := &User{ID: "u1", Email: "ann@example.com", Metadata: map[string]any{"display_name": "Meta Ann", "avatar_url": "https://img/a.png"}}
		p, _ := NewMemberProfile(withMeta, "  ", 1)
		if p.Name() != "Meta Ann" {
			t.Errorf("expected metadata name, got %q", p.Name())
		}
		if p.AvatarURL == nil || *p.AvatarURL != "https://img/a.png" {
			t.Errorf("expected avatar from metadata, got %v", p.AvatarURL)
		}

		withEmail := &User{ID: "u2", Email: "bob@example.com"}
		p, _ = NewMemberProfile(withEmail, "", 1)
		if p.Name() != "bob" {
			t.Errorf("expected email local part, got %q", p.Name())
		}

		bare := &User{ID: "u3"}
		p, _ = NewMemberProfile(bare, "", 1)
		if p.Name() != DefaultDisplayName {
			t.Errorf("expected %q, got %q", DefaultDisplayName, p.Name())
		}
	})

	t.Run("should fail without a user", func(t *testing.T) {
		_, err := NewMemberProfile(nil, "x", 1)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestProfileUpdateValidate(t *testing.T) {
	blank := "   "
	name := "New"
	if err := (ProfileUpdate{}).Validate(); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("empty update should be invalid, got %v", err)
	}
	if err := (ProfileUpdate{DisplayName: &blank}).Validate(); err == nil {
		t.Error("blank display name should be invalid")
	}
	if err := (ProfileUpdate{DisplayName: &name}).Validate(); err != nil {
		t.Errorf("expected valid update, got %v", err)
	}
}

// --- Ledger Tests ---

func TestNewLedgerEntry(t *testing.T) {
	e, err := NewWelcomeBonus("u1", 100)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if e.Delta != 100 || e.Reason != "Welcome bonus" || e.Source != PointsSourceManual {
		t.Errorf("unexpected welcome bonus entry: %+v", e)
	}

	cases := []struct {
		name   string
		user   string
		delta  int64
		reason string
		source PointsSource
	}{
		{"missing user", "", 1, "r", PointsSourcePromo},
		{"zero delta", "u1", 0, "r", PointsSourcePromo},
		{"blank reason", "u1", 5, " ", PointsSourcePromo},
		{"unknown source", "u1", 5, "r", PointsSource("gift")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewLedgerEntry(tc.user, tc.delta, tc.reason, tc.source); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

// --- Reward / Redemption / Promotion Tests ---

func TestRewardShortfall(t *testing.T) {
	r := &Reward{Cost: 300}
	if got := r.Shortfall(120); got != 180 {
		t.Errorf("expected shortfall 180, got %d", got)
	}
	if got := r.Shortfall(300); got != 0 {
		t.Errorf("expected no shortfall, got %d", got)
	}
	if !r.AffordableWith(500) || r.AffordableWith(299) {
		t.Error("affordability boundary is wrong")
	}
}

func TestRedemptionExpired(t *testing.T) {
	now := time.Now()
	r := &Redemption{Status: RedemptionStatusPending, ExpiresAt: now.Add(VoucherTTL)}
	if r.Expired(now) {
		t.Error("fresh voucher should not be expired")
	}
	if !r.Expired(now.Add(VoucherTTL)) {
		t.Error("voucher should expire at its deadline")
	}
	r.Status = RedemptionStatusRedeemed
	if r.Expired(now.Add(time.Hour)) {
		t.Error("redeemed voucher is never reported as expired")
	}
}

func TestPromotionActiveOn(t *testing.T) {
	day := func(s string) time.Time {
		d, _ := time.Parse("2006-01-02", s)
		return d
	}
	p := &Promotion{StartDate: day("2026-10-01"), EndDate: day("2026-10-18"), Urgent: true}
	if !p.ActiveOn(day("2026-10-18").Add(15 * time.Hour)) {
		t.Error("promotion should be active through its end date")
	}
	if p.ActiveOn(day("2026-10-19")) {
		t.Error("promotion should not be active after its end date")
	}
	if !p.Matches(PromotionKindEvents) || p.Matches(PromotionKindPromotions) {
		t.Error("urgent promotion should only match the events feed")
	}
}

func TestSortTiersIsStable(t *testing.T) {
	tiers := []*Tier{{ID: 3, MinPoints: 1500}, {ID: 1, MinPoints: 0}, {ID: 2, MinPoints: 500}, {ID: 4, MinPoints: 500}}
	SortTiers(tiers)
	got := []int{tiers[0].ID, tiers[1].ID, tiers[2].ID, tiers[3].ID}
	want := []int{1, 2, 4, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}
