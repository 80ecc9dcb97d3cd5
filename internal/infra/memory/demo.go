package memory

import (
	"time"

	"uplus-loyalty/internal/domain/model"
)

// DemoOutlet names its brand so the catalog can be seeded into stores that
// assign brand ids themselves.
type DemoOutlet struct {
	Brand  string
	Outlet model.Outlet
}

type DemoPromotion struct {
	Brand     string
	Promotion model.Promotion
}

// Catalog is reference data shared by the demo, the seeder and tests.
type Catalog struct {
	Tiers      []model.Tier
	Categories []model.RewardCategory
	Rewards    []model.Reward
	Brands     []model.Brand
	Outlets    []DemoOutlet
	Promotions []DemoPromotion
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// DemoCatalog returns the standard three tiers and a small U+ catalog.
// Promotions run for thirty days either side of now.
func DemoCatalog(now time.Time) Catalog {
	start, end := now.AddDate(0, 0, -30), now.AddDate(0, 0, 30)
	return Catalog{
		Tiers: []model.Tier{
			{ID: 1, Name: "Bronze", MinPoints: 0, Benefits: map[string]any{"earn_rate": 1}},
			{ID: 2, Name: "Silver", MinPoints: 500, Benefits: map[string]any{"earn_rate": 1.25, "birthday_reward": true}},
			{ID: 3, Name: "Gold", MinPoints: 1500, Benefits: map[string]any{"earn_rate": 1.5, "birthday_reward": true, "priority_queue": true}},
		},
		Categories: []model.RewardCategory{
			{Code: "fnb", Label: "Food & Drinks"},
			{Code: "lifestyle", Label: "Lifestyle"},
			{Code: "voucher", Label: "Vouchers"},
		},
		Rewards: []model.Reward{
			{CategoryCode: "fnb", Title: "Free Coffee", Description: strPtr("Any regular hot or iced coffee."), Cost: 300, Available: true},
			{CategoryCode: "fnb", Title: "Pastry Set", Description: strPtr("Two pastries of your choice."), Cost: 450, Available: true},
			{CategoryCode: "lifestyle", Title: "Cinema Ticket", Cost: 900, Available: true},
			{CategoryCode: "voucher", Title: "RM20 Dining Voucher", Cost: 1200, Available: true},
			{CategoryCode: "voucher", Title: "RM50 Shopping Voucher", Cost: 2500, Available: true},
			{CategoryCode: "lifestyle", Title: "Spa Day", Cost: 5000, Available: false},
		},
		Brands: []model.Brand{
			{Name: "U+ Coffee", Description: strPtr("Specialty coffee bar.")},
			{Name: "U+ Bakery", Description: strPtr("Fresh bakes daily.")},
		},
		Outlets: []DemoOutlet{
			{Brand: "U+ Coffee", Outlet: model.Outlet{Name: "Coffee @ Central", Address: strPtr("1 Central Plaza"), Lat: floatPtr(3.1478), Lng: floatPtr(101.6953)}},
			{Brand: "U+ Coffee", Outlet: model.Outlet{Name: "Coffee @ Riverside", Address: strPtr("22 River Walk")}},
			{Brand: "U+ Bakery", Outlet: model.Outlet{Name: "Bakery @ Central", Address: strPtr("1 Central Plaza"), Phone: strPtr("+60 3-1234 5678")}},
		},
		Promotions: []DemoPromotion{
			{Brand: "U+ Coffee", Promotion: model.Promotion{Title: "Latte Art Workshop", ContentMD: strPtr("Join our baristas this weekend."), StartDate: start, EndDate: end, Urgent: true}},
			{Brand: "U+ Bakery", Promotion: model.Promotion{Title: "Double Points Tuesdays", ContentMD: strPtr("Earn 2x points on every purchase."), StartDate: start, EndDate: end}},
			{Promotion: model.Promotion{Title: "Spring Sale", StartDate: now.AddDate(0, -6, 0), EndDate: now.AddDate(0, -5, 0)}},
		},
	}
}

// Seed loads c into the store. It returns the generated reward ids by title.
func (s *Store) Seed(c Catalog) map[string]string {
	for _, t := range c.Tiers {
		s.AddTier(t)
	}
	for _, cat := range c.Categories {
		s.AddRewardCategory(cat)
	}
	ids := make(map[string]string, len(c.Rewards))
	for _, r := range c.Rewards {
		ids[r.Title] = s.AddReward(r)
	}
	brandIDs := make(map[string]int, len(c.Brands))
	for _, b := range c.Brands {
		brandIDs[b.Name] = s.AddBrand(b)
	}
	for _, o := range c.Outlets {
		out := o.Outlet
		out.BrandID = brandIDs[o.Brand]
		s.AddOutlet(out)
	}
	for _, p := range c.Promotions {
		promo := p.Promotion
		if id, ok := brandIDs[p.Brand]; ok {
			promo.BrandID = &id
		}
		s.AddPromotion(promo)
	}
	return ids
}
