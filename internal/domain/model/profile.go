package model

import (
	"strings"
	"time"

	"uplus-loyalty/internal/domain"
)

// DefaultDisplayName is used when neither the caller, the provider metadata
// nor the email yield a name.
const DefaultDisplayName = "Member"

// Profile is the one-per-member loyalty row. Points is never negative.
type Profile struct {
	ID              string     `json:"id"`
	DisplayName     *string    `json:"display_name"`
	AvatarURL       *string    `json:"avatar_url"`
	TierID          int        `json:"tier_id"`
	Points          int64      `json:"points"`
	CreatedAt       time.Time  `json:"created_at"`
	MemberQRToken   *string    `json:"member_qr_token"`
	QRCodeData      *string    `json:"qr_code_data"`
	QRCodeUpdatedAt *time.Time `json:"qr_code_updated_at"`
	Tier            *Tier      `json:"tier,omitempty"`
}

func (p *Profile) IsZero() bool { return p == nil || p.ID == "" }

// Name returns the display name or "".
func (p *Profile) Name() string {
	if p == nil || p.DisplayName == nil {
		return ""
	}
	return *p.DisplayName
}

// Clone returns a deep copy safe to hand out of the account state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Tier != nil {
		t := *p.Tier
		cp.Tier = &t
	}
	return &cp
}

// NewMemberProfile builds the initial profile for a freshly signed-up member.
// The display name falls back through explicit name, provider metadata,
// email local part and finally DefaultDisplayName.
func NewMemberProfile(user *User, displayName string, defaultTierID int) (*Profile, error) {
	if user.IsZero() || defaultTierID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = user.MetaString("display_name")
	}
	if name == "" {
		name = user.EmailLocalPart()
	}
	if name == "" {
		name = DefaultDisplayName
	}
	p := &Profile{
		ID:          user.ID,
		DisplayName: &name,
		TierID:      defaultTierID,
		Points:      0,
		CreatedAt:   time.Now(),
	}
	if avatar := user.MetaString("avatar_url"); avatar != "" {
		p.AvatarURL = &avatar
	}
	return p, nil
}

// ProfileUpdate holds optional fields for a partial profile update.
// Nil fields are not updated.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

func (u ProfileUpdate) IsEmpty() bool { return u.DisplayName == nil && u.AvatarURL == nil }

// Validate rejects empty updates and blank display names.
func (u ProfileUpdate) Validate() error {
	if u.IsEmpty() {
		return &domain.ValidationError{Field: "profile", Message: "no fields to update"}
	}
	if u.DisplayName != nil && strings.TrimSpace(*u.DisplayName) == "" {
		return &domain.ValidationError{Field: "display_name", Message: "must not be blank"}
	}
	return nil
}
