package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"order-ledger/internal/adapters/cli"
	"order-ledger/internal/app"
	"order-ledger/internal/config"
	"order-ledger/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	logger, err := logging.NewConsole(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rt *app.Runtime
	provide := func(ctx context.Context) (app.ApplicationService, error) {
		r, err := app.Bootstrap(ctx, cfg, logger, app.BootstrapOptions{})
		if err != nil {
			return nil, err
		}
		rt = r
		return r.Service, nil
	}

	root := cli.NewCommand(provide, cli.Options{JWTSecret: cfg.JWTSecret})
	cmdErr := root.ExecuteContext(ctx)

	if rt != nil {
		if err := rt.Close(context.Background()); err != nil {
			logger.Error("failed to close ledger", zap.Error(err))
		}
	}
	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		return 1
	}
	return 0
}
