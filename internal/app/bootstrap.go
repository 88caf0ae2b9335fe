package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"order-ledger/internal/analytics"
	"order-ledger/internal/config"
	"order-ledger/internal/core"
	"order-ledger/internal/db"
	"order-ledger/internal/imagestore"
	"order-ledger/migrations"
)

// Runtime owns the wired service and the resources behind it.
type Runtime struct {
	Service ApplicationService
	Store   core.OrderStore
	Session *analytics.Session

	logger  *zap.Logger
	pool    *pgxpool.Pool
	sqlite  *sqlx.DB
	watcher *core.DocumentWatcher
}

// BootstrapOptions selects optional runtime behaviour.
type BootstrapOptions struct {
	// Watch reloads the store when the order documents change on disk.
	// Only the file storage driver supports it.
	Watch bool
}

// Bootstrap opens storage per cfg, loads the orders and starts the analytics
// session. Close releases everything.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts BootstrapOptions) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rt := &Runtime{logger: logger}
	ok := false
	defer func() {
		if !ok {
			rt.Close(context.Background())
		}
	}()

	settings, err := rt.openSettings(cfg)
	if err != nil {
		return nil, err
	}

	var docs core.DocumentStore
	var docDir string
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		rt.pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, rt.pool, migrations.FS, logger); err != nil {
			return nil, err
		}
		docs = core.NewPgDocuments(rt.pool)
	default:
		files, err := core.NewFileDocuments(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		moved, err := files.MigrateLegacy()
		if err != nil {
			logger.Warn("legacy order files could not be migrated", zap.Error(err))
		}
		for _, name := range moved {
			logger.Info("migrated legacy order file", zap.String("document", name))
		}
		docs, docDir = files, files.Dir
	}

	images, err := imagestore.New(cfg.ImagesDir(), logger.Named("images"))
	if err != nil {
		return nil, err
	}

	numbers := core.NewOrderNumberGenerator(settings, loc, logger)
	rt.Store = core.NewOrderStore(docs, core.StoreOptions{
		Numbers:   numbers,
		Images:    images,
		SaveDelay: cfg.SaveDebounce,
		Logger:    logger.Named("store"),
	})
	if err := rt.Store.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	engine := analytics.NewEngine(loc)
	rt.Session = analytics.NewSession(engine, rt.Store.Orders, analytics.DefaultConfig(engine.Now()), cfg.RecomputeDebounce, logger.Named("analytics"))
	rt.Store.OnChange(rt.Session.Refresh)

	if opts.Watch && docDir != "" {
		rt.watcher, err = core.NewDocumentWatcher(docDir, rt.Store.Load, logger.Named("watcher"))
		if err != nil {
			return nil, fmt.Errorf("failed to create document watcher: %w", err)
		}
		if err := rt.watcher.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", docDir, err)
		}
	}

	rt.Service = NewAppService(Deps{
		Store:        rt.Store,
		Images:       images,
		Settings:     settings,
		Engine:       engine,
		Session:      rt.Session,
		Location:     loc,
		DeadlineDays: cfg.ShippingDeadlineDays,
		Logger:       logger,
	})
	ok = true
	return rt, nil
}

func (rt *Runtime) openSettings(cfg *config.Config) (core.SettingsStore, error) {
	if cfg.SettingsDriver == config.DriverSQLite {
		store, sqlDB, err := core.OpenSQLiteSettings(cfg.SettingsPath())
		if err != nil {
			return nil, err
		}
		rt.sqlite = sqlDB
		return store, nil
	}
	return core.NewFileSettings(cfg.SettingsPath()), nil
}

// Close stops background work, waits for pending saves and releases storage.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.watcher != nil {
		rt.watcher.Stop()
	}
	if rt.Session != nil {
		rt.Session.Close()
	}
	if rt.Store != nil {
		if err := rt.Store.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to save orders: %w", err))
		}
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.sqlite != nil {
		if err := rt.sqlite.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		rt.logger.Error("shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}
