// Package config assembles runtime settings from .env, an optional YAML file
// and the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DataDir              string        `yaml:"data_dir"`
	StorageDriver        string        `yaml:"storage_driver"`
	DatabaseURL          string        `yaml:"database_url"`
	SettingsDriver       string        `yaml:"settings_driver"`
	SQLitePath           string        `yaml:"sqlite_path"`
	Timezone             string        `yaml:"timezone"`
	ServerPort           string        `yaml:"server_port"`
	AllowedOrigins       string        `yaml:"allowed_origins"`
	JWTSecret            string        `yaml:"jwt_secret"`
	LogLevel             string        `yaml:"log_level"`
	ShippingDeadlineDays int           `yaml:"shipping_deadline_days"`
	SaveDebounce         time.Duration `yaml:"save_debounce"`
	RecomputeDebounce    time.Duration `yaml:"recompute_debounce"`
	WatchDocuments       bool          `yaml:"watch_documents"`
}

func Default() *Config {
	return &Config{
		DataDir:              "data",
		StorageDriver:        DriverFile,
		SettingsDriver:       DriverFile,
		Timezone:             "Local",
		ServerPort:           "8080",
		LogLevel:             "info",
		ShippingDeadlineDays: 7,
		RecomputeDebounce:    100 * time.Millisecond,
		WatchDocuments:       true,
	}
}

// Load reads .env (missing is fine), then CONFIG_FILE when set, then
// environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile starts from defaults, applies the YAML file at path (skipped when
// path is empty or missing) and then the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"DATA_DIR":        &c.DataDir,
		"STORAGE_DRIVER":  &c.StorageDriver,
		"DATABASE_URL":    &c.DatabaseURL,
		"SETTINGS_DRIVER": &c.SettingsDriver,
		"SQLITE_PATH":     &c.SQLitePath,
		"TIMEZONE":        &c.Timezone,
		"SERVER_PORT":     &c.ServerPort,
		"ALLOWED_ORIGINS": &c.AllowedOrigins,
		"JWT_SECRET":      &c.JWTSecret,
		"LOG_LEVEL":       &c.LogLevel,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SHIPPING_DEADLINE_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SHIPPING_DEADLINE_DAYS %q: %w", v, err)
		}
		c.ShippingDeadlineDays = n
	}
	for key, dst := range map[string]*time.Duration{
		"SAVE_DEBOUNCE":      &c.SaveDebounce,
		"RECOMPUTE_DEBOUNCE": &c.RecomputeDebounce,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = d
		}
	}
	if v := os.Getenv("WATCH_DOCUMENTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WATCH_DOCUMENTS %q: %w", v, err)
		}
		c.WatchDocuments = b
	}
	return nil
}

func (c *Config) Validate() error {
	c.StorageDriver = strings.ToLower(c.StorageDriver)
	c.SettingsDriver = strings.ToLower(c.SettingsDriver)
	switch c.StorageDriver {
	case DriverFile:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.SettingsDriver != DriverFile && c.SettingsDriver != DriverSQLite {
		return fmt.Errorf("unknown settings driver %q", c.SettingsDriver)
	}
	if c.ShippingDeadlineDays < 0 {
		return fmt.Errorf("shipping deadline must not be negative, got %d", c.ShippingDeadlineDays)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) ImagesDir() string { return filepath.Join(c.DataDir, "Images") }

func (c *Config) SettingsPath() string {
	if c.SettingsDriver == DriverSQLite {
		if c.SQLitePath != "" {
			return c.SQLitePath
		}
		return filepath.Join(c.DataDir, "settings.db")
	}
	return filepath.Join(c.DataDir, "settings.yaml")
}
