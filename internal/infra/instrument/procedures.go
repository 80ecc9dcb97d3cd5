package instrument

import (
	"context"

	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/infra/metrics"
)

var _ adapter.RemoteProcedures = (*Procedures)(nil)

type Procedures struct {
	inner adapter.RemoteProcedures
}

func NewProcedures(inner adapter.RemoteProcedures) *Procedures {
	return &Procedures{inner: inner}
}

func (p *Procedures) RedeemReward(ctx context.Context, userID, rewardID string) (string, error) {
	code, err := p.inner.RedeemReward(ctx, userID, rewardID)
	switch {
	case err != nil:
		metrics.IncRedemption(result(err))
	case code == "":
		metrics.IncRedemption("empty_voucher")
	default:
		metrics.IncRedemption("success")
	}
	return code, err
}

func (p *Procedures) GenerateMemberQRToken(ctx context.Context, userID string) (string, error) {
	tok, err := p.inner.GenerateMemberQRToken(ctx, userID)
	metrics.IncMemberQR("generate", result(err))
	return tok, err
}

func (p *Procedures) ValidateMemberQRToken(ctx context.Context, token string) (*model.MemberQRValidation, error) {
	v, err := p.inner.ValidateMemberQRToken(ctx, token)
	res := result(err)
	if err == nil && (v == nil || !v.IsValid) {
		res = "invalid"
	}
	metrics.IncMemberQR("validate", res)
	return v, err
}
