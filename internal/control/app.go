// Package control wires the service together: storage, cache, source
// adapters, the snapshot pipeline, the notifier hub and the HTTP server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"treasuryd/internal/core/config"
	redisclient "treasuryd/internal/infra/redis"
	"treasuryd/internal/infra/source"
	"treasuryd/internal/infra/source/analytics"
	"treasuryd/internal/infra/source/custody"
	"treasuryd/internal/infra/source/governance"
	"treasuryd/internal/infra/source/ledger"
	"treasuryd/internal/infra/source/nftindex"
	"treasuryd/internal/infra/storage"
	"treasuryd/internal/infra/storage/memory"
	"treasuryd/internal/infra/storage/postgres"
	"treasuryd/internal/notify"
	"treasuryd/internal/server"
	"treasuryd/internal/treasury"
)

// App is the assembled service.
type App struct {
	cfg config.AppConfig

	db          *postgres.DB
	redisClient *redisclient.Client
	generator   *treasury.Generator
	scheduler   *treasury.Scheduler
	hub         *notify.Hub
	httpServer  *server.Server

	hubCancel context.CancelFunc
}

// New builds the application from configuration. Storage backs onto
// PostgreSQL when a database URL is configured and falls back to the
// in-memory store otherwise.
func New(cfg config.AppConfig) (*App, error) {
	app := &App{cfg: cfg}

	// 1. Storage
	var snapshotRepo storage.SnapshotRepository
	var nftRepo storage.NftAssetRepository
	var settingRepo storage.SettingRepository

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		app.db = db
		snapshotRepo = postgres.NewSnapshotRepo(db)
		nftRepo = postgres.NewNftAssetRepo(db)
		settingRepo = postgres.NewSettingRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		snapshotRepo = memory.NewSnapshotRepo(store)
		nftRepo = memory.NewNftAssetRepo(store)
		settingRepo = memory.NewSettingRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Cache (optional)
	if cfg.Redis.URL != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		app.redisClient = redisClient
		slog.Info("Using Redis snapshot cache")
	}

	// 3. Source adapters. Only configured providers are wired in.
	var sources []source.TokenSource
	var prices source.PriceSource
	var nftSrc source.NftSource
	var analyticsSrc *analytics.Adapter

	if cfg.Sources.Custody.VaultAddress != "" {
		sources = append(sources, custody.New(cfg.Sources.Custody))
	}
	if cfg.Sources.Analytics.APIKey != "" {
		analyticsSrc = analytics.New(cfg.Sources.Analytics)
		sources = append(sources, analyticsSrc)
		prices = analyticsSrc
	}
	if cfg.Sources.Ledger.SpreadsheetID != "" {
		sources = append(sources, ledger.New(cfg.Sources.Ledger))
	}
	if cfg.Sources.NftIndex.APIKey != "" {
		nftSrc = nftindex.New(cfg.Sources.NftIndex)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no treasury sources configured")
	}
	slog.Info("Configured treasury sources", "count", len(sources))

	// 4. Notifier
	app.hub = notify.NewHub()

	// 5. Snapshot pipeline
	app.generator = treasury.NewGenerator(treasury.GeneratorConfig{
		Sources:   sources,
		Prices:    prices,
		Snapshots: snapshotRepo,
		Nfts:      nftRepo,
		Cache:     app.redisClient,
		Notifier:  app.hub,
		MaxAge:    cfg.Cache.MaxAge,
	})
	app.scheduler = treasury.NewScheduler(app.generator, cfg.Scheduler.Interval, treasury.RetryConfig{
		MaxAttempts:     cfg.Scheduler.MaxAttempts,
		InitialDelay:    cfg.Scheduler.InitialDelay,
		MaxDelay:        cfg.Scheduler.MaxDelay,
		BackoffMultiple: cfg.Scheduler.BackoffMultiple,
	})

	// 6. HTTP server
	checks := make(map[string]server.HealthChecker)
	if app.db != nil {
		checks["database"] = app.db
	}
	if app.redisClient != nil {
		checks["redis"] = app.redisClient
	}

	var proposals server.ProposalFetcher
	if cfg.Sources.Governance.Space != "" {
		proposals = governance.New(cfg.Sources.Governance)
	}
	var nftFetcher server.NftFetcher
	if nftSrc != nil {
		nftFetcher = nftSrc
	}
	// The analytics floor query backfills floors the NFT indexer is missing
	var floors server.FloorSource
	if analyticsSrc != nil {
		floors = analyticsSrc
	}

	app.httpServer = server.New(server.Config{Port: cfg.Server.Port}, server.Deps{
		Snapshots: app.generator,
		Refresh:   app.scheduler,
		Proposals: proposals,
		NftSource: nftFetcher,
		Floors:    floors,
		NftRepo:   nftRepo,
		Settings:  settingRepo,
		Ws:        app.hub,
		Wallets:   cfg.Wallets,
		Checks:    checks,
	})

	return app, nil
}

// Start launches the notifier hub, the scheduler and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(ctx)
	a.hubCancel = cancel
	go a.hub.Run(hubCtx)

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		slog.Info("HTTP server listening", "port", a.cfg.Server.Port)
		if err := a.httpServer.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts everything down in reverse start order.
func (a *App) Stop(ctx context.Context) error {
	if err := a.httpServer.Stop(ctx); err != nil {
		slog.Warn("HTTP server shutdown error", "error", err)
	}

	a.scheduler.Stop()

	if a.hubCancel != nil {
		a.hubCancel()
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			slog.Warn("Redis close error", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("Database close error", "error", err)
		}
	}

	return nil
}
