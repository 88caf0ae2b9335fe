package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	webAdapter "order-ledger/internal/adapters/web"
	"order-ledger/internal/app"
	"order-ledger/internal/config"
	"order-ledger/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, cfg, logger, app.BootstrapOptions{Watch: cfg.WatchDocuments})
	if err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set; the API is unauthenticated")
	}
	handler := webAdapter.NewHandler(rt.Service, webAdapter.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := rt.Close(shutdownCtx); err != nil {
		logger.Error("runtime close", zap.Error(err))
	}
}
