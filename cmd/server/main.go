package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fiado/backend/internal/cache"
	"fiado/backend/internal/config"
	"fiado/backend/internal/httpapi"
	"fiado/backend/internal/logger"
	"fiado/backend/internal/metrics"
	"fiado/backend/internal/scheduler"
	"fiado/backend/internal/service"
	"fiado/backend/internal/store"
	"fiado/backend/internal/store/memory"
	"fiado/backend/internal/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				zl.Warn("close error", zap.Error(err))
			}
		}
	}()

	repo, closeRepo, err := openRepository(ctx, cfg, zl)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	reportCache := cache.ReportCache(cache.NewMemoryReportCache())
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisReportCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisCache.Ping(ctx); err != nil {
			zl.Warn("redis unavailable, using in-process report cache", zap.Error(err))
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			zl.Info("report cache: redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	m := metrics.New(cfg.MetricsPrefix)
	svc := service.New(repo, zl.Named("service"),
		service.WithReportCache(reportCache, cfg.Reports.CacheTTL),
		service.WithMetrics(m),
	)

	if cfg.SeedDemoData && cfg.Database.Driver != "memory" {
		created, err := svc.SeedCatalog(ctx, store.DemoProducts())
		if err != nil {
			return fmt.Errorf("seed demo catalog: %w", err)
		}
		zl.Info("demo catalog seeded", zap.Int("created", created))
	}

	auth := httpapi.NewAuthManager(ctx, cfg.Auth.Secret, cfg.Auth.AccessTokenTTL, repo)
	if err := auth.EnsureOwner(ctx, cfg.Auth.OwnerUsername, cfg.Auth.OwnerPassword); err != nil {
		return fmt.Errorf("bootstrap owner: %w", err)
	}
	api := httpapi.New(svc, auth, m, zl.Named("http"), cfg.AllowedOrigin)

	refresher := scheduler.NewReportRefresher(svc, zl.Named("scheduler"))
	defer refresher.Stop()
	svc.OnRefreshScheduleChange(refresher.UpdateSchedule)
	refreshSpec, err := svc.GetConfig(ctx, service.RefreshScheduleKey, cfg.Reports.RefreshSpec)
	if err != nil {
		return fmt.Errorf("read refresh schedule: %w", err)
	}
	if refreshSpec != "" {
		if err := refresher.Start(refreshSpec); err != nil {
			return err
		}
		go refresher.RunOnce()
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("fiado backend listening", zap.String("addr", cfg.Address()), zap.String("db_driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("shutdown error", zap.Error(err))
	}

	zl.Info("server stopped")
	return nil
}

// openRepository picks the store for the configured driver. The returned
// close function is nil for the memory store.
func openRepository(ctx context.Context, cfg config.Config, zl *zap.Logger) (store.Repository, func() error, error) {
	switch cfg.Database.Driver {
	case "memory":
		zl.Info("repository: in-memory", zap.Bool("seeded", cfg.SeedDemoData))
		if cfg.SeedDemoData {
			return memory.NewSeeded(), nil, nil
		}
		return memory.New(), nil, nil
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		pg, err := sqlstore.OpenPostgres(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, zl.Named("sqlstore"))
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable: %w", err)
		}
		zl.Info("repository: postgres")
		return pg, pg.Close, nil
	default:
		lite, err := sqlstore.OpenSQLite(ctx, cfg.Database.Path, cfg.Database.MaxOpenConns, zl.Named("sqlstore"))
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.Database.Path, err)
		}
		zl.Info("repository: sqlite", zap.String("path", cfg.Database.Path))
		return lite, lite.Close, nil
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.Auth.Secret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.Auth.OwnerPassword != "" && len(cfg.Auth.OwnerPassword) < 8 {
		return fmt.Errorf("OWNER_PASSWORD must be at least 8 characters")
	}
	return nil
}
