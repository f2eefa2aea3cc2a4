package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"appproft-buybox-sync/internal/alert"
	"appproft-buybox-sync/internal/cache"
	"appproft-buybox-sync/internal/config"
	"appproft-buybox-sync/internal/engine"
	"appproft-buybox-sync/internal/handler"
	"appproft-buybox-sync/internal/ratelimit"
	"appproft-buybox-sync/internal/repository"
	"appproft-buybox-sync/internal/router"
	"appproft-buybox-sync/internal/service"
	"appproft-buybox-sync/internal/spapi"
	"appproft-buybox-sync/internal/token"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting appproft buy box sync...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Credential cipher for refresh tokens at rest
	var cipher *repository.Cipher
	if cfg.Amazon.CredentialSecret != "" {
		var err error
		cipher, err = repository.NewCipher(cfg.Amazon.CredentialSecret)
		if err != nil {
			log.Fatalf("Failed to initialize credential cipher: %v", err)
		}
	} else {
		log.Println("Warning: CREDENTIAL_SECRET not set, stored credentials unavailable")
	}

	// Initialize tracking repository based on config
	var trackingRepo repository.TrackingRepository
	var credentialRepo repository.CredentialRepository
	var trackingPinger handler.Pinger

	switch cfg.TrackingDB.Type {
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresTrackingRepository(cfg.TrackingDB.PostgresDSN(), cipher)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		defer pgRepo.Close()
		trackingRepo = pgRepo
		credentialRepo = pgRepo
		trackingPinger = pgRepo
		log.Println("PostgreSQL tracking repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteTrackingRepository(cfg.TrackingDB.Path, cipher)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		defer sqliteRepo.Close()
		trackingRepo = sqliteRepo
		credentialRepo = sqliteRepo
		trackingPinger = sqliteRepo
		log.Println("SQLite tracking repository initialized")
	}

	// Catalog database (read-only, owned by the listing side)
	catalogRepo, err := repository.NewMySQLCatalogRepository(cfg.CatalogDB.DSN())
	if err != nil {
		log.Fatalf("Failed to initialize catalog database: %v", err)
	}
	defer catalogRepo.Close()

	// Seller-name cache
	var lookupCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Redis cache: %v", err)
		}
		defer redisCache.Close()
		lookupCache = redisCache
	default:
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		lookupCache = memCache
		log.Println("Memory cache initialized")
	}
	sellerCache := cache.NewSellerNameCache(lookupCache, cfg.Cache.TTL)

	// Token manager and offers client
	tokenManager := token.NewManager(token.Config{
		Endpoint:     cfg.Amazon.TokenEndpoint,
		ClientID:     cfg.Amazon.ClientID,
		ClientSecret: cfg.Amazon.ClientSecret,
		Marketplace:  cfg.Amazon.MarketplaceID,
		Margin:       cfg.Amazon.TokenMargin,
	}, credentialRepo)

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	offersClient := spapi.NewClient(spapi.Config{
		Endpoint:        cfg.Amazon.APIEndpoint,
		MarketplaceID:   cfg.Amazon.MarketplaceID,
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}, tokenManager, limiter)

	// Sync orchestration
	syncService := service.NewSyncService(
		catalogRepo,
		trackingRepo,
		offersClient,
		tokenManager,
		sellerCache,
		engine.SellerIdentity{ID: cfg.Amazon.SellerID, Name: cfg.Amazon.SellerName},
		service.SyncConfig{
			BatchSize:   cfg.Sync.BatchSize,
			BatchPause:  cfg.Sync.BatchPause,
			Concurrency: cfg.Sync.Concurrency,
			RunTimeout:  cfg.Sync.RunTimeout,
		},
	)

	scheduler := service.NewSyncScheduler(syncService, cfg.Sync.PollInterval)
	scheduler.Start()
	defer scheduler.Stop()

	sweeper := service.NewRetentionSweeper(trackingRepo, service.RetentionConfig{
		OfferMaxAge:   cfg.Retention.OfferMaxAge,
		SweepInterval: cfg.Retention.SweepInterval,
	})
	sweeper.Start()
	defer sweeper.Stop()

	// HTTP surface
	alertManager := alert.NewManager(trackingRepo)

	r := router.New(router.Config{
		Handler:       handler.New(trackingPinger),
		SyncHandler:   handler.NewSyncHandler(syncService),
		BuyBoxHandler: handler.NewBuyBoxHandler(trackingRepo),
		AlertHandler:  handler.NewAlertHandler(alertManager),
		AdminKey:      cfg.App.AdminKey,
	})

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
