package model

import "time"

// RewardCategory groups rewards in the catalog.
type RewardCategory struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Reward is a redeemable catalog item priced in points.
type Reward struct {
	ID           string          `json:"id"`
	CategoryCode string          `json:"category_code"`
	Title        string          `json:"title"`
	Description  *string         `json:"description"`
	ImageURL     *string         `json:"image_url"`
	Cost         int64           `json:"cost"`
	Available    bool            `json:"available"`
	CreatedAt    time.Time       `json:"created_at"`
	Category     *RewardCategory `json:"reward_categories,omitempty"`
}

// Shortfall returns how many points a balance lacks for this reward, 0 if affordable.
func (r *Reward) Shortfall(balance int64) int64 {
	if balance >= r.Cost {
		return 0
	}
	return r.Cost - balance
}

func (r *Reward) AffordableWith(balance int64) bool { return balance >= r.Cost }
