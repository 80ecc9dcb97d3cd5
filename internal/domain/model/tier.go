package model

import (
	"sort"
	"time"
)

// Tier is a loyalty rank unlocked at MinPoints.
type Tier struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	MinPoints int64          `json:"min_points"`
	Benefits  map[string]any `json:"benefits,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (t *Tier) IsZero() bool { return t == nil || t.Name == "" }

// SortTiers orders tiers ascending by MinPoints. Equal thresholds keep their
// incoming order.
func SortTiers(tiers []*Tier) {
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinPoints < tiers[j].MinPoints })
}
