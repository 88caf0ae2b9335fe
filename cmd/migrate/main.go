package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"order-ledger/internal/config"
	"order-ledger/internal/db"
	"order-ledger/internal/logging"
	"order-ledger/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewConsole(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.FS, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("all migrations processed")
}
