package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// migrationLockID is the advisory lock key held while migrations run.
const migrationLockID = 7462839

// Migrate applies every NNN_description.sql file in migrations that has not
// been recorded in schema_migrations. An applied file whose checksum changed
// is an error.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for lock: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockID).Scan(&locked); err != nil {
		return fmt.Errorf("failed to query advisory lock: %w", err)
	}
	if !locked {
		return errors.New("another migrator is currently running")
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID)

	_, err = conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	files, err := discoverMigrations(migrations)
	if err != nil {
		return err
	}
	for _, filename := range files {
		if err := applyMigration(ctx, conn, migrations, filename, logger); err != nil {
			return err
		}
	}
	return nil
}

func discoverMigrations(migrations fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var filenames []string
	versions := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := extractVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		if versions[version] {
			return nil, fmt.Errorf("duplicate migration version %s", version)
		}
		versions[version] = true
		filenames = append(filenames, entry.Name())
	}
	sort.Strings(filenames)
	return filenames, nil
}

func extractVersion(filename string) (string, error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid migration filename %s, expected NNN_description.sql", filename)
	}
	return parts[0], nil
}

func applyMigration(ctx context.Context, conn *pgxpool.Conn, migrations fs.FS, filename string, logger *zap.Logger) error {
	version, err := extractVersion(filename)
	if err != nil {
		return err
	}
	sqlBytes, err := fs.ReadFile(migrations, filename)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", filename, err)
	}
	hash := sha256.Sum256(sqlBytes)
	checksum := hex.EncodeToString(hash[:])

	var existing string
	err = conn.QueryRow(ctx, "SELECT checksum FROM schema_migrations WHERE version = $1", version).Scan(&existing)
	switch {
	case err == nil && existing == checksum:
		logger.Debug("migration already applied", zap.String("file", filename))
		return nil
	case err == nil:
		return fmt.Errorf("checksum mismatch for %s: recorded %s, file %s", filename, existing, checksum)
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("failed to query schema_migrations for %s: %w", filename, err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", filename, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)", version, filename, checksum); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", filename, err)
	}
	logger.Info("migration applied", zap.String("file", filename))
	return nil
}
