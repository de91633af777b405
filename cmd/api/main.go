// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siliconforge/eda-backend/internal/account"
	"github.com/siliconforge/eda-backend/internal/admin"
	"github.com/siliconforge/eda-backend/internal/aichat"
	"github.com/siliconforge/eda-backend/internal/auth"
	"github.com/siliconforge/eda-backend/internal/config"
	"github.com/siliconforge/eda-backend/internal/core"
	"github.com/siliconforge/eda-backend/internal/entitlement"
	"github.com/siliconforge/eda-backend/internal/health"
	"github.com/siliconforge/eda-backend/internal/middleware"
	"github.com/siliconforge/eda-backend/internal/payment"
	"github.com/siliconforge/eda-backend/internal/product"
	"github.com/siliconforge/eda-backend/internal/project"
	"github.com/siliconforge/eda-backend/internal/server"
	"github.com/siliconforge/eda-backend/internal/storage"
	"github.com/siliconforge/eda-backend/internal/tools"
	"github.com/siliconforge/eda-backend/internal/worker"
)

const drainDelay = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.Migrate {
		if err := core.Migrate(ctx, db.DB); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	blobs, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("object store ready",
		"endpoint", cfg.Storage.Endpoint,
		"bucket", cfg.Storage.Bucket,
	)

	if err := ensureKeyPair(cfg); err != nil {
		return err
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized", "algorithm", "ES256")

	pool := worker.NewPool(cfg.Worker.Size, cfg.Worker.QueueDepth)
	logger.Info("worker pool started",
		"size", cfg.Worker.Size,
		"queue_depth", cfg.Worker.QueueDepth,
	)

	productRepo := product.NewRepository(db.DB)
	productSvc := product.NewService(productRepo)

	accountRepo := account.NewRepository(db.DB)
	accountSvc := account.NewService(accountRepo, productRepo)

	resolver := entitlement.NewResolver(productRepo)

	authSvc := auth.NewService(accountRepo, jwtManager, cfg.JWT)

	projectRepo := project.NewRepository(db.DB)
	projectSvc := project.NewService(
		projectRepo, blobs, cfg.Storage.PresignExpiry)

	gemini := aichat.NewGeminiClient(cfg.AI)
	aichatSvc := aichat.NewService(gemini, accountSvc)

	toolsRepo := tools.NewRepository(db.DB)
	toolsSvc := tools.NewService(tools.ServiceConfig{
		Logs:          toolsRepo,
		Projects:      projectRepo,
		Accounts:      accountSvc,
		Resolver:      resolver,
		Blobs:         blobs,
		Generator:     gemini,
		Jobs:          pool,
		PresignExpiry: cfg.Storage.PresignExpiry,
	})

	paymentRepo := payment.NewRepository(db.DB)
	gateway := payment.NewRazorpayClient(cfg.Payment)
	paymentSvc := payment.NewService(
		paymentRepo, gateway, accountSvc, productRepo,
		cfg.Payment.KeyID, cfg.Payment.KeySecret)

	authHandler := auth.NewHandler(authSvc, jwtManager)
	accountHandler := account.NewHandler(accountSvc)
	productHandler := product.NewHandler(productSvc)
	projectHandler := project.NewHandler(projectSvc, cfg.Server.MaxUploadBytes)
	toolsHandler := tools.NewHandler(toolsSvc)
	aichatHandler := aichat.NewHandler(aichatSvc)
	paymentHandler := payment.NewHandler(paymentSvc)

	healthHandler := health.NewHandler(db, redis, blobs)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		PoolStats:  pool.Stats,
	})

	srv := server.New(cfg.Server)
	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(middleware.MaxBodyBytes(cfg.Server.MaxUploadBytes))

	healthHandler.RegisterRoutes(router)

	authenticator := middleware.Authenticator(jwtManager)
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		accountHandler.RegisterRoutes(r, authenticator, adminOnly)
		productHandler.RegisterRoutes(r, authenticator, adminOnly)
		projectHandler.RegisterRoutes(r, authenticator)
		toolsHandler.RegisterRoutes(r, authenticator)
		aichatHandler.RegisterRoutes(r, authenticator)
		paymentHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	healthHandler.SetShutdown(true)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// ensureKeyPair provisions a signing key on first run in development.
// Production deployments must mount their own keys.
func ensureKeyPair(cfg *config.Config) error {
	if !cfg.IsDevelopment() {
		return nil
	}

	_, err := os.Stat(cfg.JWT.PrivateKeyPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if mkErr := os.MkdirAll(
		filepath.Dir(cfg.JWT.PrivateKeyPath), 0o700); mkErr != nil {
		return mkErr
	}

	slog.Info("generating development signing key pair",
		"private_key", cfg.JWT.PrivateKeyPath,
	)
	return auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
