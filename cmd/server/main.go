// Package main is the entrypoint for the tablab API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanzhu/tablab/internal/api"
	"github.com/hanzhu/tablab/internal/api/handler"
	mw "github.com/hanzhu/tablab/internal/api/middleware"
	"github.com/hanzhu/tablab/internal/cache"
	"github.com/hanzhu/tablab/internal/config"
	"github.com/hanzhu/tablab/internal/job"
	"github.com/hanzhu/tablab/internal/metrics"
	"github.com/hanzhu/tablab/internal/model"
	"github.com/hanzhu/tablab/internal/retention"
	"github.com/hanzhu/tablab/internal/signing"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)
	slog.Info("config loaded", "job_store", cfg.Jobs.Store, "out_dir", cfg.Upload.OutDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Upload.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// 2. Select the job store backend
	var store job.Store
	switch cfg.Jobs.Store {
	case "postgres":
		pool, err := job.Connect(ctx, cfg.Jobs.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := job.RunMigrations(cfg.Jobs.DatabaseURL, "migrations"); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		store = job.NewPostgresStore(pool)
	default:
		store = job.NewFSStore(cfg.Upload.OutDir)
	}

	// 3. Optional Redis cache: rate limiting and terminal-status reads
	var statusCache cache.Cache
	var rateLimit *mw.RateLimit
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")

		statusCache = redisCache
		rateLimit = mw.NewRateLimit(redisCache, cfg.Upload.RatePerMin)
	}

	// 4. Model store: preload is best-effort, jobs fall back to ad-hoc fitting
	models := model.NewStore(cfg.Model.Path)
	if _, err := models.Load(); err != nil {
		slog.Warn("no trained model loaded", "path", cfg.Model.Path, "error", err)
	} else {
		slog.Info("model loaded", "path", cfg.Model.Path)
	}
	if cfg.Model.Watch {
		go func() {
			if err := models.Watch(ctx); err != nil {
				slog.Error("model watch stopped", "error", err)
			}
		}()
	}

	// 5. Background retention sweeper
	go retention.Run(ctx, cfg.Upload.OutDir, cfg.Retention.TTL, cfg.Retention.SweepInterval)

	// 6. Orchestrator and signed-URL issuance
	signer := signing.New(cfg.Signing.Key, cfg.Server.BaseURL, cfg.Signing.TTL)
	if !signer.Enabled() {
		slog.Warn("download links are unsigned; set DOWNLOAD_SIGNING_KEY to enable signing")
	}

	orch := job.NewOrchestrator(store, signer, models, job.OrchestratorConfig{
		OutDir:        cfg.Upload.OutDir,
		MaxBytes:      cfg.Upload.MaxBytes,
		AllowedExt:    cfg.Upload.AllowedExt,
		AllowedMIME:   cfg.Upload.AllowedMIME,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
	})

	// 7. Build router with dependencies
	admin := mw.NewAdminAuth(cfg.Admin.Token, cfg.Admin.TokenHash)
	if !admin.Enabled() {
		slog.Warn("admin endpoints are unauthenticated; set ADMIN_TOKEN or ADMIN_TOKEN_HASH")
	}

	router := api.NewRouter(api.Dependencies{
		Admin:     admin,
		RateLimit: rateLimit,

		Health:   handler.NewHealthHandler(store, statusCache),
		Analyze:  handler.NewAnalyzeHandler(orch.Submit),
		Status:   handler.NewStatusHandler(store, statusCache),
		Download: handler.NewDownloadHandler(signer, cfg.Upload.OutDir),
		Metrics:  metrics.Handler(),

		AdminCleanup:     handler.NewCleanupHandler(cfg.Upload.OutDir, cfg.Retention.TTL),
		AdminModelReload: handler.NewModelReloadHandler(models),
	})

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
