package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/nearby-deals/internal/cache"
	"github.com/fairyhunter13/nearby-deals/internal/config"
	"github.com/fairyhunter13/nearby-deals/internal/handler"
	"github.com/fairyhunter13/nearby-deals/internal/repository"
	"github.com/fairyhunter13/nearby-deals/internal/scheduler"
	"github.com/fairyhunter13/nearby-deals/internal/service"
	"github.com/fairyhunter13/nearby-deals/internal/validator"
	"github.com/fairyhunter13/nearby-deals/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply database schema")
		}
	}

	// Snapshot cache: Redis when configured, otherwise in-process
	var (
		snapshots   service.SnapshotCache
		redisClient *redis.Client
		cachePinger handler.Pinger
	)
	switch {
	case cfg.Cache.TTL <= 0:
		log.Info().Msg("offer snapshot cache disabled")
	case cfg.Cache.RedisAddr != "":
		redisClient, err = cache.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("failed to connect to redis")
		}
		snapshots = cache.NewRedisCache(redisClient, cache.DefaultKey)
		cachePinger = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		log.Info().Str("addr", cfg.Cache.RedisAddr).Dur("ttl", cfg.Cache.TTL).Msg("using redis offer snapshot cache")
	default:
		snapshots = cache.NewMemoryCache()
		log.Info().Dur("ttl", cfg.Cache.TTL).Msg("using in-process offer snapshot cache")
	}

	// Initialize validator
	validate := validator.New()

	// Repositories
	uow := database.NewUnitOfWork(pool)
	offerRepo := repository.NewOfferRepository(pool)
	redemptionRepo := repository.NewRedemptionRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)

	// Services
	redemptionService := service.NewRedemptionService(
		uow, offerRepo, redemptionRepo, customerRepo, snapshots, cfg.Redemption.Timeout)
	availabilityService := service.NewAvailabilityService(offerRepo, snapshots, service.AvailabilityConfig{
		CacheTTL:      cfg.Cache.TTL,
		MaxDistanceKm: cfg.Nearby.MaxDistanceKm,
		MaxResults:    cfg.Nearby.MaxResults,
	})
	offerService := service.NewOfferService(offerRepo, redemptionRepo, snapshots)
	customerService := service.NewCustomerService(customerRepo, redemptionRepo)
	auditService := service.NewAuditService(offerRepo)

	// Periodic accounting audit
	var sched *scheduler.Scheduler
	if cfg.Audit.Enabled {
		sched, err = scheduler.New()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create scheduler")
		}
		if err := sched.AddAudit(auditService, cfg.Audit.Interval, cfg.Audit.Interval/2); err != nil {
			log.Fatal().Err(err).Msg("failed to schedule accounting audit")
		}
		sched.Start()
		log.Info().Dur("interval", cfg.Audit.Interval).Msg("accounting audit scheduled")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Nearby Deals",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	redemptionHandler := handler.NewRedemptionHandler(redemptionService, validate)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService, validate)
	offerHandler := handler.NewOfferHandler(offerService, validate)
	customerHandler := handler.NewCustomerHandler(customerService, validate)

	// Health handler
	healthHandler := handler.NewHealthHandler(pool, cachePinger)
	app.Get("/health", healthHandler.Check)

	// Offer routes; fixed paths must precede /:code
	app.Get("/api/offers/active", availabilityHandler.ListActive)
	app.Post("/api/offers/nearby", availabilityHandler.FindNearby)
	app.Post("/api/offers", offerHandler.CreateOffer)
	app.Get("/api/offers/:code", offerHandler.GetOffer)

	// Redemption and customer routes
	app.Post("/api/redemptions", redemptionHandler.Redeem)
	app.Post("/api/customers", customerHandler.EnsureCustomer)
	app.Get("/api/customers/:id/redemptions", customerHandler.History)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Stop the audit first so no job starts against a closing pool
	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error during scheduler shutdown")
		}
	}

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis client")
		}
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
