package main

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"fiado/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{Auth: config.AuthConfig{Secret: "short"}})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}

	err = validateSecurityConfig(config.Config{Auth: config.AuthConfig{Secret: "0123456789abcdef0123456789abcdef", OwnerPassword: "abc"}})
	if err == nil {
		t.Fatalf("expected short owner password to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{Auth: config.AuthConfig{Secret: "0123456789abcdef0123456789abcdef", OwnerPassword: "tienda-2024"}})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOpenRepositoryByDriver(t *testing.T) {
	ctx := context.Background()

	repo, closeFn, err := openRepository(ctx, config.Config{Database: config.DatabaseConfig{Driver: "memory"}, SeedDemoData: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("memory repository: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("expected no close function for the memory store")
	}
	products, err := repo.ListProducts(ctx)
	if err != nil || len(products) == 0 {
		t.Fatalf("expected seeded products, got %d (%v)", len(products), err)
	}

	path := filepath.Join(t.TempDir(), "fiado.db")
	repo, closeFn, err = openRepository(ctx, config.Config{Database: config.DatabaseConfig{Driver: "sqlite", Path: path, MaxOpenConns: 2}}, zap.NewNop())
	if err != nil {
		t.Fatalf("sqlite repository: %v", err)
	}
	defer func() { _ = closeFn() }()
	if _, err := repo.ListProducts(ctx); err != nil {
		t.Fatalf("list products on sqlite: %v", err)
	}

	if _, _, err := openRepository(ctx, config.Config{Database: config.DatabaseConfig{Driver: "postgres"}}, zap.NewNop()); err == nil {
		t.Fatalf("expected postgres without DATABASE_URL to fail")
	}
}
