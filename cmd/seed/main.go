package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"fiado/backend/internal/domain"
	"fiado/backend/internal/config"
	"fiado/backend/internal/logger"
	"fiado/backend/internal/service"
	"fiado/backend/internal/store"
	"fiado/backend/internal/store/sqlstore"
)

// seed loads the demo catalog into the configured SQL database. Products that
// already exist by name are left alone, so it is safe to run repeatedly.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var repo *sqlstore.Store
	switch cfg.Database.Driver {
	case "postgres":
		repo, err = sqlstore.OpenPostgres(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, zl)
	case "sqlite":
		repo, err = sqlstore.OpenSQLite(ctx, cfg.Database.Path, cfg.Database.MaxOpenConns, zl)
	default:
		zl.Fatal("seed needs a persistent driver", zap.String("db_driver", cfg.Database.Driver))
	}
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = repo.Close() }()

	svc := service.New(repo, zl)
	ctx = service.WithActor(ctx, domain.Actor{Username: "seed", Role: "system"})

	created, err := svc.SeedCatalog(ctx, store.DemoProducts())
	if err != nil {
		zl.Fatal("seed catalog", zap.Error(err))
	}
	zl.Info("catalog seeded", zap.Int("created", created), zap.Int("total", len(store.DemoProducts())))
}
