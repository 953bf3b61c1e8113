package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"repricer-api/internal/cache"
	"repricer-api/internal/config"
	"repricer-api/internal/handler"
	"repricer-api/internal/marketplace"
	"repricer-api/internal/middleware"
	"repricer-api/internal/repository"
	"repricer-api/internal/router"
	"repricer-api/internal/service"
	"repricer-api/internal/vault"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting repricer API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.App.Debug),
	}))

	// The auxiliary tables (strategies, credentials, events, settings) always
	// live in the SQLite file; the listing store backend is selectable.
	auxDB, err := repository.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open SQLite store: %v", err)
	}
	defer auxDB.Close()

	strategyRepo := repository.NewSQLiteStrategyRepository(auxDB)
	credentialRepo := repository.NewSQLiteCredentialRepository(auxDB)
	eventRepo := repository.NewSQLiteEventRepository(auxDB)
	settingsRepo := repository.NewSQLiteSettingsRepository(auxDB)

	// Initialize listing repository based on config
	var listingRepo repository.ListingRepository
	switch cfg.Store.Type {
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresListingRepository(cfg.Store.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		defer pgRepo.Close()
		listingRepo = pgRepo
		log.Println("PostgreSQL listing repository initialized")
	case "mysql":
		myRepo, err := repository.NewMySQLListingRepository(cfg.Store.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		defer myRepo.Close()
		listingRepo = myRepo
		log.Println("MySQL listing repository initialized")
	default: // sqlite
		listingRepo = repository.NewSQLiteListingRepository(auxDB)
		log.Println("SQLite listing repository initialized")
	}

	// OAuth state store: Redis when reachable, in-memory otherwise. The
	// memory store is fine for a single instance; multi-instance deployments
	// need Redis so the callback can land on any instance.
	var stateStore cache.StateStore
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed, using in-memory state store: %v", err)
		stateStore = cache.NewMemoryStateStore()
	} else {
		stateStore = cache.NewRedisStateStore(redisClient)
		log.Println("Redis state store initialized")
	}
	cancel()

	// Credential vault
	credVault, err := vault.New(credentialRepo, cfg.Vault.MasterKey)
	if err != nil {
		log.Fatalf("Failed to initialize vault: %v", err)
	}

	// Token lifecycle manager and marketplace clients. The marketplace
	// client draws tokens from the manager; the manager uses the client for
	// revocation, hence the two-step wiring.
	tokenManager := service.NewTokenManager(credVault, stateStore, cfg.Marketplace, cfg.Scheduler, logger)
	marketClient := marketplace.NewClient(cfg.Marketplace.BaseURL, tokenManager,
		marketplace.WithTimeout(cfg.Marketplace.Timeout),
		marketplace.WithRetries(cfg.Marketplace.MaxRetries, cfg.Marketplace.RetryBackoff),
		marketplace.WithRateLimit(cfg.Marketplace.MinRequestInterval()),
		marketplace.WithRevokeURL(cfg.Marketplace.RevokeURL),
		marketplace.WithLogger(logger),
	)
	tokenManager.SetRevoker(marketClient)

	catalogClient := marketplace.NewCatalogClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey,
		marketplace.WithCatalogTimeout(cfg.Catalog.Timeout),
		marketplace.WithCatalogLogger(logger),
	)

	// Initialize services
	synchronizer := service.NewSynchronizer(listingRepo, settingsRepo, marketClient, catalogClient, logger)
	scheduler := service.NewReductionScheduler(listingRepo, strategyRepo, settingsRepo, eventRepo, marketClient, cfg.Scheduler.Workers, logger)
	strategyService := service.NewStrategyService(strategyRepo, listingRepo, logger)
	listingService := service.NewListingService(listingRepo, strategyRepo, eventRepo, logger)

	// Optional in-process cron trigger for reconciliation and reduction
	// cycles. Deployments that trigger both externally (POST /api/v1/sync,
	// POST /api/v1/reductions/run) leave SCHEDULER_CRON empty.
	if cfg.Scheduler.Cron != "" {
		users := make(map[string]bool)
		for _, u := range middleware.ParseAPIKeys(cfg.App.APIKeys) {
			users[u] = true
		}

		c := cron.New()
		_, err := c.AddFunc(cfg.Scheduler.Cron, func() {
			ctx := context.Background()
			for u := range users {
				if _, err := synchronizer.Reconcile(ctx, u); err != nil {
					// Users without a marketplace connection fail here; the
					// reduction cycle below still covers their listings.
					log.Printf("Reconciliation for %s failed: %v", u, err)
				}
			}

			stats, err := scheduler.RunCycle(ctx, time.Now().UTC())
			if err != nil {
				log.Printf("Reduction cycle failed: %v", err)
				return
			}
			log.Printf("Reduction cycle: processed=%d reduced=%d skipped=%d failed=%d",
				stats.Processed, stats.Reduced, stats.Skipped, stats.Failed)
		})
		if err != nil {
			log.Fatalf("Invalid SCHEDULER_CRON %q: %v", cfg.Scheduler.Cron, err)
		}
		c.Start()
		defer c.Stop()
		log.Printf("Reduction cycle scheduled: %s", cfg.Scheduler.Cron)
	}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version, listingRepo)
	listingHandler := handler.NewListingHandler(listingService, synchronizer, scheduler)
	strategyHandler := handler.NewStrategyHandler(strategyService)
	syncHandler := handler.NewSyncHandler(synchronizer, settingsRepo, cfg.Scheduler.SyncFreshness)
	reductionHandler := handler.NewReductionHandler(scheduler)
	oauthHandler := handler.NewOAuthHandler(tokenManager)
	settingsHandler := handler.NewSettingsHandler(settingsRepo)
	adminHandler := handler.NewAdminHandler(listingRepo)

	// Create auth middleware with injected dependencies (NO GLOBALS!)
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		APIKeys: middleware.ParseAPIKeys(cfg.App.APIKeys),
	})

	// Create router
	r := router.New(router.Config{
		Handler:          healthHandler,
		ListingHandler:   listingHandler,
		StrategyHandler:  strategyHandler,
		SyncHandler:      syncHandler,
		ReductionHandler: reductionHandler,
		OAuthHandler:     oauthHandler,
		SettingsHandler:  settingsHandler,
		AdminHandler:     adminHandler,
		AuthMiddleware:   authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func logLevel(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
