//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"uplus-loyalty/internal/config"
	"uplus-loyalty/internal/domain/model"
)

var testPool *pgxpool.Pool

// TestMain applies the schema to the database named by TEST_DATABASE_URL.
// Without it the integration suite is skipped.
func TestMain(m *testing.M) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		fmt.Println("TEST_DATABASE_URL not set; skipping postgres integration tests")
		os.Exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := NewPgxPool(ctx, config.DatabaseConfig{URL: url, MaxConns: 4})
	if err != nil {
		cancel()
		fmt.Printf("could not connect: %v\n", err)
		os.Exit(1)
	}
	if err := ApplySchema(ctx, pool); err != nil {
		cancel()
		fmt.Printf("could not apply schema: %v\n", err)
		os.Exit(1)
	}
	seeder := NewCatalogSeeder(pool)
	for _, tr := range []*model.Tier{
		{ID: 1, Name: "Bronze", MinPoints: 0},
		{ID: 2, Name: "Silver", MinPoints: 500},
		{ID: 3, Name: "Gold", MinPoints: 1500},
	} {
		if err := seeder.SaveTier(ctx, tr); err != nil {
			cancel()
			fmt.Printf("could not seed tiers: %v\n", err)
			os.Exit(1)
		}
	}
	cancel()
	testPool = pool

	code := m.Run()
	pool.Close()
	os.Exit(code)
}

// newMember inserts a fresh profile and returns its id.
func newMember(t *testing.T, points int64) string {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()
	name := "Tester"
	if _, err := NewPostgresProfileRepo(testPool).Upsert(ctx, nil, &model.Profile{ID: id, DisplayName: &name, TierID: 1}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if points > 0 {
		e, _ := model.NewLedgerEntry(id, points, "test grant", model.PointsSourcePromo)
		if _, err := NewPostgresLedgerRepo(testPool).Insert(ctx, nil, e); err != nil {
			t.Fatalf("seed points: %v", err)
		}
	}
	return id
}

func newReward(t *testing.T, cost int64) *model.Reward {
	t.Helper()
	ctx := context.Background()
	seeder := NewCatalogSeeder(testPool)
	if err := seeder.SaveRewardCategory(ctx, &model.RewardCategory{Code: "fnb", Label: "Food & Drinks"}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	r := &model.Reward{CategoryCode: "fnb", Title: "Coffee " + uuid.NewString()[:8], Cost: cost, Available: true}
	if err := seeder.SaveReward(ctx, r); err != nil {
		t.Fatalf("seed reward: %v", err)
	}
	return r
}
