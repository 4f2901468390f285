package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/engagekit/vaultd/internal/api"
	"github.com/engagekit/vaultd/internal/config"
	"github.com/engagekit/vaultd/internal/crypto"
	"github.com/engagekit/vaultd/internal/database"
	"github.com/engagekit/vaultd/internal/handlers"
	"github.com/engagekit/vaultd/internal/logging"
	"github.com/engagekit/vaultd/internal/middleware"
	"github.com/engagekit/vaultd/internal/models"
	"github.com/engagekit/vaultd/internal/replay"
	"github.com/engagekit/vaultd/internal/repository"
	"github.com/engagekit/vaultd/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// NOTE: At least one .sql file must exist in migrations/ for embedding to work.
// Make sure to build from the project root so the path is correct.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

func runMigrations(cfg *config.Config) error {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	fmt.Println("Migrations applied successfully.")
	return nil
}

func main() {
	// CLI flags
	configPath := pflag.StringP("config", "c", "config.yaml", "Path to config file")
	migrateFlag := pflag.BoolP("migrate", "m", false, "Run database migrations and exit")
	version := pflag.BoolP("version", "v", false, "Print version and exit")
	generateKey := pflag.Bool("generate-key", false, "Generate a random encryption key and exit")
	port := pflag.IntP("port", "p", 8080, "HTTP server listen port")
	logLevel := pflag.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	masterToken := pflag.String("master-token", "", "Override master token from config")
	jwtSecret := pflag.String("jwt-secret", "", "Override JWT secret from config")

	pflag.Parse()

	if *version {
		fmt.Println("vaultd version 1.0.0")
		os.Exit(0)
	}

	if *generateKey {
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Key generation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
		os.Exit(0)
	}

	if *migrateFlag {
		cfg, err := config.LoadWithPath(*configPath)
		if err != nil {
			panic("Failed to load configuration: " + err.Error())
		}
		if err := runMigrations(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadWithPath(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Override config with CLI flags if set
	if pflag.Lookup("port").Changed {
		cfg.Server.Port = *port
	}
	if pflag.Lookup("log-level").Changed {
		cfg.Logging.Level = *logLevel
	}
	if pflag.Lookup("master-token").Changed && *masterToken != "" {
		cfg.Auth.MasterToken = *masterToken
	}
	if pflag.Lookup("jwt-secret").Changed && *jwtSecret != "" {
		cfg.Auth.JWTSecret = *jwtSecret
	}

	// Initialize logger
	logger, err := logging.InitLogger(logging.LoggingConfig(cfg.Logging))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	if cfg.Webhooks.AllowUnverified {
		if cfg.IsProduction() {
			logger.Fatal("allow_unverified must not be enabled in production")
		}
		logger.Warn("Webhook signature verification is in fail-open mode")
	}

	// Initialize encryptor; a missing key is fatal in production
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key, cfg.IsProduction())
	if err != nil {
		logger.Fatal("Failed to initialize encryption", zap.Error(err))
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("No encryption key configured, using insecure development key")
	}

	// Initialize database connection
	db, err := database.NewPostgresDB(cfg.Database.ToDBConfig())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Initialize repositories
	secretRepo := repository.NewSecretRepository(db, logger)
	eventRepo := repository.NewWebhookEventRepository(db, logger)

	// Initialize services
	secretsService := services.NewSecretsService(secretRepo, encryptor, logger)
	tokenService := services.NewTokenService(cfg.Auth.MasterToken, cfg.Auth.JWTSecret)
	verifier := services.NewWebhookVerifier(map[models.Provider]string{
		models.ProviderMeta:        cfg.Webhooks.MetaAppSecret,
		models.ProviderShopify:     cfg.Webhooks.ShopifySecret,
		models.ProviderStripe:      cfg.Webhooks.StripeSecret,
		models.ProviderWooCommerce: cfg.Webhooks.WooCommerceSecret,
	}, cfg.Webhooks.StripeTolerance)
	replayCache := replay.NewCache(redisClient, 2*cfg.Webhooks.StripeTolerance)
	sweeper := services.NewSweeper(secretRepo, eventRepo,
		cfg.Sweeper.Interval, cfg.Sweeper.SecretRetention, cfg.Sweeper.EventRetention, logger)

	// Initialize handlers
	secretHandler := handlers.NewSecretHandler(secretsService)
	webhookHandler := handlers.NewWebhookHandler(eventRepo, replayCache, logger)
	tokenHandler := handlers.NewTokenHandler(tokenService)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient,
		middleware.WithBucketSize(cfg.RateLimit.BucketSize),
		middleware.WithRefillRate(cfg.RateLimit.RefillRate),
	)

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware(logger))
	router.Use(middleware.RequestLogger(logger))

	// Setup routes with middleware
	api.SetupRoutes(router, secretHandler, webhookHandler, tokenHandler,
		tokenService, verifier, rateLimiter, cfg.Webhooks.AllowUnverified)

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start retention sweeper in background
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go sweeper.Run(sweepCtx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Shutting down server...")

		cancelSweep()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Fatal("Server forced to shutdown", zap.Error(err))
		}
	}()

	logger.Info("Starting server", zap.Int("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}
}
