// Package main is the entry point for the kiosk admin server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/abdul-hamid-achik/kiosk/internal/config"
	"github.com/abdul-hamid-achik/kiosk/internal/crypto"
	"github.com/abdul-hamid-achik/kiosk/internal/handlers"
	"github.com/abdul-hamid-achik/kiosk/internal/logging"
	"github.com/abdul-hamid-achik/kiosk/internal/machine"
	"github.com/abdul-hamid-achik/kiosk/internal/metrics"
	"github.com/abdul-hamid-achik/kiosk/internal/middleware"
	"github.com/abdul-hamid-achik/kiosk/internal/ratelimit"
	"github.com/abdul-hamid-achik/kiosk/internal/session"
	"github.com/abdul-hamid-achik/kiosk/internal/store"
	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load(os.Getenv("KIOSK_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	logger.Info("starting kiosk server",
		"version", version,
		"env", cfg.Env,
		"storage", cfg.Storage.Driver,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The machine secret binds the encrypted config to this data directory.
	secret, err := machine.LoadOrCreateSecret(filepath.Join(cfg.Storage.DataDir, machine.SecretFilename))
	if err != nil {
		return fmt.Errorf("failed to load machine secret: %w", err)
	}
	cipher, err := crypto.NewCipher(secret)
	crypto.ZeroBytes(secret)
	if err != nil {
		return fmt.Errorf("failed to initialize cipher: %w", err)
	}

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DataDir,
		store.WithPostgres(cfg.Storage.PostgresURL, cfg.Storage.PostgresMaxConns))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	v := vault.New(st, cipher, vault.WithSetupCodeTTL(cfg.Security.SetupCodeTTL))
	sessions := session.NewManager(session.WithTTL(cfg.Security.SessionIdleTimeout, cfg.Security.SessionMaxAge))
	limiter := ratelimit.New(
		ratelimit.WithLimits(cfg.RateLimit.MaxLoginAttempts, cfg.RateLimit.LockoutDuration),
		ratelimit.OnLockout(func(string) { metrics.Lockouts.Inc() }),
	)

	deps := &handlers.Dependencies{
		Config:   cfg,
		Vault:    v,
		Sessions: sessions,
		Limiter:  limiter,
		Logger:   logger,
	}

	// Redis is optional and only backs the request throttle.
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opt.MaxRetries = cfg.Redis.MaxRetries
		opt.PoolSize = cfg.Redis.PoolSize
		redisClient := redis.NewClient(opt)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, request throttle will fail open", "error", err)
		} else {
			logger.Info("connected to Redis")
		}

		deps.Redis = redisClient
		deps.Throttle = middleware.NewRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	router := handlers.NewRouter(deps)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background tasks
	go session.RunSweeper(ctx, cfg.Security.CleanupInterval, sessions, limiter)
	if cfg.Metrics.Enabled {
		go metrics.StartCollector(ctx, metrics.Sources{Sessions: sessions, Lockouts: limiter}, cfg.Metrics.CollectInterval)
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening",
			"addr", cfg.ServerAddr(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
