// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"uplus-loyalty/internal/config"
	"uplus-loyalty/internal/domain/ports/adapter"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/adapters/supabase"
	"uplus-loyalty/internal/infra/api"
	"uplus-loyalty/internal/infra/api/apiv1"
	pg "uplus-loyalty/internal/infra/db/postgres"
	"uplus-loyalty/internal/infra/i18n"
	"uplus-loyalty/internal/infra/instrument"
	"uplus-loyalty/internal/infra/logging"
	"uplus-loyalty/internal/infra/memory"
	"uplus-loyalty/internal/infra/metrics"
	red "uplus-loyalty/internal/infra/redis"
	"uplus-loyalty/internal/infra/sched"
	"uplus-loyalty/internal/infra/security"
	"uplus-loyalty/internal/infra/sessionstore"
	"uplus-loyalty/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

// backend is everything the use cases need from a storage/auth stack.
type backend struct {
	gateway     adapter.SessionGateway
	procs       adapter.RemoteProcedures
	profiles    repository.ProfileRepository
	tiers       repository.TierRepository
	ledger      repository.LedgerRepository
	catalog     repository.CatalogRepository
	redemptions repository.RedemptionRepository
	tm          repository.TransactionManager
	cache       repository.QueryCache

	limiter apiv1.Limiter
	locker  apiv1.Locker
	workers []func(ctx context.Context) error
	closers []func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted fields)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Backend)

	var be *backend
	switch cfg.Backend {
	case config.BackendMemory:
		be = memoryBackend(logger, cfg.Runtime.Dev)
	default:
		be, err = supabaseBackend(ctx, cfg, logger)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Backend).Msg("backend init")
	}
	defer func() {
		for i := len(be.closers) - 1; i >= 0; i-- {
			be.closers[i]()
		}
	}()

	// ---- Instrumentation ----
	gateway := instrument.NewGateway(be.gateway)
	procs := instrument.NewProcedures(be.procs)
	profiles := instrument.NewProfiles(be.profiles)
	ledger := instrument.NewLedger(be.ledger)

	// ---- Use cases ----
	opts := usecase.DefaultAccountOptions()
	opts.WelcomeBonus = cfg.Loyalty.WelcomeBonus
	opts.DefaultTierID = cfg.Loyalty.DefaultTierID
	opts.BonusRefreshDelay = cfg.Loyalty.BonusRefreshDelay

	tierCatalog := usecase.NewTierCatalog(be.tiers, logger)
	account := usecase.NewAccountManager(gateway, procs, profiles, ledger, be.tm, tierCatalog, opts, logger)
	defer account.Close()
	account.Initialize(ctx)

	redemptionSvc := usecase.NewRedemptionService(account, procs, be.cache, logger).WithVoucherTTL(cfg.Loyalty.VoucherTTL)
	historyUC := usecase.NewHistoryUseCase(account, ledger, be.redemptions, be.cache, cfg.Loyalty.HistoryTTL, logger)
	pointsUC := usecase.NewPointsUseCase(account, ledger, procs, be.cache, logger)
	catalogUC := usecase.NewCatalogUseCase(be.catalog, logger)

	// ---- HTTP ----
	bundle, err := i18n.NewBundle(i18n.LocalesFS, cfg.Locale.Default)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	deps := apiv1.Deps{
		Account:     account,
		Redemptions: redemptionSvc,
		History:     historyUC,
		Points:      pointsUC,
		Catalog:     catalogUC,
		Bundle:      bundle,
		Limiter:     be.limiter,
		Locker:      be.locker,
		DevLogs:     cfg.Runtime.Dev,
	}
	if cfg.Staff.Secret != "" {
		deps.Staff = apiv1.NewStaffAuth(cfg.Staff.Secret, cfg.Staff.TokenTTL)
	} else {
		logger.Warn().Msg("staff.secret not set; staff endpoints are unauthenticated")
	}
	v1 := apiv1.NewHandler(deps, logger)
	server := api.NewServer(cfg.HTTP, api.NewRouter(logger, v1, cfg.HTTP.WriteTimeout), logger)

	// ---- Workers ----
	refresher := sched.NewSessionRefresher(cfg.Session.RefreshInterval, cfg.Session.RefreshLeeway, gateway, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return refresher.Run(gctx) })
	for _, w := range be.workers {
		w := w
		g.Go(func() error { return w(gctx) })
	}

	logger.Info().Str("backend", cfg.Backend).Str("version", version).Msg("loyalty service started")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("service stopped with error")
		return
	}
	logger.Info().Msg("shutdown complete")
}

func memoryBackend(logger *zerolog.Logger, dev bool) *backend {
	store := memory.NewStore()
	store.Seed(memory.DemoCatalog(time.Now()))
	return &backend{
		gateway:     memory.NewGateway(store, logger).WithDevLogs(dev),
		procs:       memory.NewProcedures(store),
		profiles:    memory.NewProfileRepo(store),
		tiers:       memory.NewTierRepo(store),
		ledger:      memory.NewLedgerRepo(store),
		catalog:     memory.NewCatalogRepo(store),
		redemptions: memory.NewRedemptionRepo(store),
		tm:          memory.NewTxManager(),
		cache:       memory.NewQueryCache(),
	}
}

func supabaseBackend(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*backend, error) {
	be := &backend{}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	be.closers = append(be.closers, pool.Close)
	if err := pg.ApplySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	reporter := sched.NewPoolReporter(15*time.Second, pool, logger)
	be.workers = append(be.workers, reporter.Run)

	be.profiles = pg.NewPostgresProfileRepo(pool)
	be.ledger = pg.NewPostgresLedgerRepo(pool)
	be.catalog = pg.NewPostgresCatalogRepo(pool)
	be.redemptions = pg.NewPostgresRedemptionRepo(pool)
	be.tm = pg.NewTxManager(pool)
	be.tiers = pg.NewPostgresTierRepo(pool)

	// ---- Redis (optional) ----
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			pool.Close()
			return nil, err
		}
		be.closers = append(be.closers, func() { _ = rc.Close() })
		be.tiers = pg.NewTierRepoCacheDecorator(be.tiers, rc, time.Hour, logger)
		be.cache = red.NewQueryCache(rc, "loyalty:", logger)
		be.limiter = red.NewAttemptLimiter(rc)
		be.locker = red.NewMemberLock(rc)
	} else {
		logger.Warn().Msg("redis.url not set; using in-process query cache")
		be.cache = memory.NewQueryCache()
	}

	// ---- Session persistence ----
	var store supabase.SessionStore
	if cfg.Session.StorePath != "" && cfg.Session.EncryptionKey != "" {
		enc, err := security.NewEncryptionService(cfg.Session.EncryptionKey)
		if err != nil {
			return nil, err
		}
		fs, err := sessionstore.NewFileStore(cfg.Session.StorePath, enc)
		if err != nil {
			return nil, err
		}
		store = fs
	} else {
		logger.Warn().Msg("session store disabled; sessions will not survive restarts")
	}

	// ---- Supabase ----
	client := supabase.NewClient(cfg.Supabase, logger)
	auth := supabase.NewAuthGateway(client, store, logger)
	be.gateway = auth
	if cfg.Supabase.RPC == config.RPCViaPostgres {
		be.procs = pg.NewPostgresProcedures(pool)
	} else {
		be.procs = supabase.NewRPC(client, auth)
	}
	return be, nil
}

var _ sched.PoolStatter = (*pgxpool.Pool)(nil)
