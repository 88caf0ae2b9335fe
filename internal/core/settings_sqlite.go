package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS app_settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const (
	keyFontScale     = "font_scale"
	keyLastOrderDate = "last_order_date"
	keyDailyCounter  = "daily_counter"
)

type sqliteSettings struct {
	db *sqlx.DB
}

// OpenSQLiteSettings opens (and creates if needed) a SQLite settings database.
func OpenSQLiteSettings(path string) (SettingsStore, *sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create settings table: %w", err)
	}
	return &sqliteSettings{db: db}, db, nil
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (s *sqliteSettings) Load(ctx context.Context) (Settings, error) {
	var rows []settingRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT key, value FROM app_settings"); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to load settings: %w", err)
	}
	return settingsFromRows(rows), nil
}

func settingsFromRows(rows []settingRow) Settings {
	settings := DefaultSettings()
	for _, r := range rows {
		switch r.Key {
		case keyFontScale:
			if v, err := strconv.ParseFloat(r.Value, 64); err == nil && v > 0 {
				settings.FontScale = v
			}
		case keyLastOrderDate:
			settings.LastOrderDate = r.Value
		case keyDailyCounter:
			if v, err := strconv.Atoi(r.Value); err == nil {
				settings.DailyCounter = v
			}
		}
	}
	return settings
}

func (s *sqliteSettings) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rows []settingRow
	if err := tx.SelectContext(ctx, &rows, "SELECT key, value FROM app_settings"); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), fmt.Errorf("failed to load settings: %w", err)
	}
	settings := settingsFromRows(rows)
	fn(&settings)

	values := map[string]string{
		keyFontScale:     strconv.FormatFloat(settings.FontScale, 'f', -1, 64),
		keyLastOrderDate: settings.LastOrderDate,
		keyDailyCounter:  strconv.Itoa(settings.DailyCounter),
	}
	for key, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO app_settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		if err != nil {
			return settings, fmt.Errorf("failed to update setting %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return settings, fmt.Errorf("failed to commit settings: %w", err)
	}
	return settings, nil
}
