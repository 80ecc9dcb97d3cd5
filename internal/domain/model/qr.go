package model

// MemberQRValidation is what staff see after scanning a member QR code.
type MemberQRValidation struct {
	MemberID    *string `json:"member_id"`
	DisplayName *string `json:"display_name"`
	Points      *int64  `json:"points"`
	TierName    *string `json:"tier_name"`
	IsValid     bool    `json:"is_valid"`
}
