package memory

import (
	"context"
	"fmt"
	"strings"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
)

var _ adapter.RemoteProcedures = (*Procedures)(nil)

// Procedures implements the three server-atomic operations under the store lock.
type Procedures struct{ s *Store }

func NewProcedures(s *Store) *Procedures { return &Procedures{s: s} }

// RedeemReward deducts the cost through the ledger and records a pending
// voucher valid for model.VoucherTTL.
func (p *Procedures) RedeemReward(ctx context.Context, userID, rewardID string) (string, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if _, ok := p.s.profiles[userID]; !ok {
		return "", fmt.Errorf("fn_redeem_reward: profile not found: %w", domain.ErrNotFound)
	}
	rw, ok := p.s.rewards[rewardID]
	if !ok || !rw.Available {
		return "", fmt.Errorf("fn_redeem_reward: reward not available: %w", domain.ErrNotFound)
	}

	code := "UPR-" + p.s.newIDLocked()
	e := &model.LedgerEntry{
		UserID: userID,
		Delta:  -rw.Cost,
		Reason: "Redeemed: " + rw.Title,
		Source: model.PointsSourceRedemption,
		RefID:  &code,
	}
	if _, err := p.s.appendLedgerLocked(e); err != nil {
		return "", fmt.Errorf("fn_redeem_reward: %w", domain.ErrInsufficientPoints)
	}

	now := p.s.now()
	p.s.redemptions = append(p.s.redemptions, &model.Redemption{
		ID:        p.s.newIDLocked(),
		UserID:    userID,
		RewardID:  rewardID,
		Cost:      rw.Cost,
		QRCode:    code,
		Status:    model.RedemptionStatusPending,
		ExpiresAt: now.Add(model.VoucherTTL),
		CreatedAt: now,
	})
	return code, nil
}

// GenerateMemberQRToken rotates the member's token; the previous one stops validating.
func (p *Procedures) GenerateMemberQRToken(ctx context.Context, userID string) (string, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	prof, ok := p.s.profiles[userID]
	if !ok {
		return "", fmt.Errorf("fn_generate_member_qr_token: profile not found: %w", domain.ErrNotFound)
	}
	if prof.MemberQRToken != nil {
		delete(p.s.qrTokens, *prof.MemberQRToken)
	}
	tok := "UPM-" + strings.ToLower(p.s.newIDLocked())
	now := p.s.now()
	prof.MemberQRToken = &tok
	prof.QRCodeData = &tok
	prof.QRCodeUpdatedAt = &now
	p.s.qrTokens[tok] = userID
	return tok, nil
}

func (p *Procedures) ValidateMemberQRToken(ctx context.Context, token string) (*model.MemberQRValidation, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	uid, ok := p.s.qrTokens[token]
	if !ok {
		return &model.MemberQRValidation{IsValid: false}, nil
	}
	prof, ok := p.s.profiles[uid]
	if !ok {
		return &model.MemberQRValidation{IsValid: false}, nil
	}
	v := &model.MemberQRValidation{IsValid: true}
	id, pts := prof.ID, prof.Points
	v.MemberID = &id
	v.Points = &pts
	if prof.DisplayName != nil {
		name := *prof.DisplayName
		v.DisplayName = &name
	}
	if t := p.s.tierByIDLocked(prof.TierID); t != nil {
		tn := t.Name
		v.TierName = &tn
	}
	return v, nil
}
