package adapter

import (
	"context"

	"uplus-loyalty/internal/domain/model"
)

// RemoteProcedures are server-atomic operations executed by the backend.
type RemoteProcedures interface {
	// RedeemReward validates the balance, deducts points, creates the
	// redemption row and returns its voucher code, all in one operation.
	RedeemReward(ctx context.Context, userID, rewardID string) (string, error)
	// GenerateMemberQRToken rotates the member's QR payload and returns it.
	GenerateMemberQRToken(ctx context.Context, userID string) (string, error)
	ValidateMemberQRToken(ctx context.Context, token string) (*model.MemberQRValidation, error)
}
