package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"uplus-loyalty/internal/config"
	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/infra/i18n"
	"uplus-loyalty/internal/infra/logging"
	"uplus-loyalty/internal/infra/memory"
	"uplus-loyalty/internal/usecase"
)

// demo walks one member through sign-up, earning, a failed and a successful
// redemption and sign-out against the in-memory backend.
func main() {
	logger := logging.New(config.LogConfig{Level: "warn", Format: "console"}, true)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := memory.NewStore()
	rewards := store.Seed(memory.DemoCatalog(time.Now()))
	procs := memory.NewProcedures(store)
	ledger := memory.NewLedgerRepo(store)

	opts := usecase.DefaultAccountOptions()
	opts.BonusRefreshDelay = 50 * time.Millisecond
	tiers := usecase.NewTierCatalog(memory.NewTierRepo(store), logger)
	account := usecase.NewAccountManager(memory.NewGateway(store, logger), procs,
		memory.NewProfileRepo(store), ledger, memory.NewTxManager(), tiers, opts, logger)
	defer account.Close()

	bundle, err := i18n.NewBundle(i18n.LocalesFS, "en")
	must(err)
	tr := bundle.For(os.Getenv("LANG"))

	account.Initialize(ctx)
	fmt.Println("status:", account.Status())

	_, err = account.SignUp(ctx, "demo@uplus.example", "demo-pass", "Demo Member")
	must(err)
	time.Sleep(100 * time.Millisecond)
	fmt.Println(tr.T("welcome_bonus", opts.WelcomeBonus))
	printMember(account, tr)

	cache := memory.NewQueryCache()
	redemptions := usecase.NewRedemptionService(account, procs, cache, logger)
	cinema, err := memory.NewCatalogRepo(store).FindReward(ctx, rewards["Cinema Ticket"])
	must(err)

	if _, err := redemptions.Redeem(ctx, cinema); err != nil {
		var ierr *domain.InsufficientPointsError
		if !errors.As(err, &ierr) {
			must(err)
		}
		fmt.Println(tr.Error(err))
	}

	points := usecase.NewPointsUseCase(account, ledger, procs, cache, logger)
	_, err = points.Award(ctx, 1000, "In-store purchase", model.PointsSourcePurchase, nil)
	must(err)
	printMember(account, tr)

	v, err := redemptions.Redeem(ctx, cinema)
	must(err)
	fmt.Println(tr.T("redemption_success"), v.Code)
	fmt.Println(tr.T("voucher_expires_in", int(v.ExpiresIn/time.Minute)))
	printMember(account, tr)

	token, err := account.GenerateMemberQRCode(ctx)
	must(err)
	check, err := points.ValidateMemberQR(ctx, token)
	must(err)
	fmt.Printf("member QR valid=%t tier=%s\n", check.IsValid, deref(check.TierName))

	history := usecase.NewHistoryUseCase(account, ledger, memory.NewRedemptionRepo(store), cache, time.Minute, logger)
	entries, err := history.PointsHistory(ctx)
	must(err)
	for _, e := range entries {
		fmt.Printf("  %+6d  %-20s %s\n", e.Delta, e.Reason, e.Source)
	}

	account.SignOut(ctx)
	fmt.Println("status:", account.Status())
}

func printMember(a *usecase.AccountManager, tr *i18n.Translator) {
	p := a.Profile()
	if p == nil {
		fmt.Println(tr.T("profile_unavailable"))
		return
	}
	tier := "-"
	if t := a.CurrentTier(); t != nil {
		tier = t.Name
	}
	progress := tr.T("top_tier")
	if next := a.NextTier(); next != nil {
		progress = tr.T("points_to_next_tier", a.PointsToNextTier(), next.Name)
	}
	fmt.Printf("%s: %d points, %s (%s)\n", p.Name(), p.Points, tier, progress)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "demo:", err)
		os.Exit(1)
	}
}
