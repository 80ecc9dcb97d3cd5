package model

import "time"

type Brand struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	LogoURL     *string   `json:"logo_url"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Outlet is a physical location of a brand.
type Outlet struct {
	ID        int       `json:"id"`
	BrandID   int       `json:"brand_id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	Brand     *Brand    `json:"brands,omitempty"`
}

type PromotionKind string

const (
	PromotionKindAll        PromotionKind = ""
	PromotionKindEvents     PromotionKind = "events"
	PromotionKindPromotions PromotionKind = "promotions"
)

func (k PromotionKind) Valid() bool {
	return k == PromotionKindAll || k == PromotionKindEvents || k == PromotionKindPromotions
}

// Promotion is a news-feed item; urgent items are listed as events.
type Promotion struct {
	ID        string    `json:"id"`
	BrandID   *int      `json:"brand_id"`
	Title     string    `json:"title"`
	ContentMD *string   `json:"content_md"`
	ImageURL  *string   `json:"image_url"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Urgent    bool      `json:"urgent"`
	CreatedAt time.Time `json:"created_at"`
	Brand     *Brand    `json:"brands,omitempty"`
}

// ActiveOn reports whether day falls within [StartDate, EndDate], compared by calendar date.
func (p *Promotion) ActiveOn(day time.Time) bool {
	d := truncateDay(day)
	return !truncateDay(p.StartDate).After(d) && !truncateDay(p.EndDate).Before(d)
}

// Matches reports whether the promotion belongs to the requested feed.
func (p *Promotion) Matches(kind PromotionKind) bool {
	switch kind {
	case PromotionKindEvents:
		return p.Urgent
	case PromotionKindPromotions:
		return !p.Urgent
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
