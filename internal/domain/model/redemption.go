package model

import "time"

// VoucherTTL is the advertised lifetime of a redemption voucher. Expiry is
// enforced by the backend; clients only display it.
const VoucherTTL = 10 * time.Minute

type RedemptionStatus string

const (
	RedemptionStatusPending  RedemptionStatus = "pending"
	RedemptionStatusRedeemed RedemptionStatus = "redeemed"
	RedemptionStatusExpired  RedemptionStatus = "expired"
)

// Redemption is created atomically by the redeem procedure; clients never
// change its status.
type Redemption struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	RewardID  string           `json:"reward_id"`
	Cost      int64            `json:"cost"`
	QRCode    string           `json:"qr_code"`
	Status    RedemptionStatus `json:"status"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
	Reward    *Reward          `json:"rewards,omitempty"`
}

// Expired reports whether a pending voucher has outlived its window.
func (r *Redemption) Expired(now time.Time) bool {
	if r.Status == RedemptionStatusExpired {
		return true
	}
	return r.Status == RedemptionStatusPending && !now.Before(r.ExpiresAt)
}
