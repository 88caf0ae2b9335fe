package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFontScale is the font scale multiplier used until the user changes it.
const DefaultFontScale = 1.0

// Settings holds user preferences and the order-number sequence state.
type Settings struct {
	FontScale     float64 `yaml:"font_scale" json:"fontScale"`
	LastOrderDate string  `yaml:"last_order_date" json:"lastOrderDate"` // YYYY-MM-DD
	DailyCounter  int     `yaml:"daily_counter" json:"dailyCounter"`
}

func DefaultSettings() Settings {
	return Settings{FontScale: DefaultFontScale}
}

// SettingsStore loads and atomically updates Settings.
type SettingsStore interface {
	Load(ctx context.Context) (Settings, error)
	// Update applies fn to the current settings and persists the result.
	Update(ctx context.Context, fn func(*Settings)) (Settings, error)
}

// ── YAML file ─────────────────────────────────────────────────────────────────

type fileSettings struct {
	path string
	mu   sync.Mutex
}

// NewFileSettings stores settings as YAML at path.
func NewFileSettings(path string) SettingsStore {
	return &fileSettings{path: path}
}

func (s *fileSettings) Load(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *fileSettings) load() (Settings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse settings: %w", err)
	}
	if settings.FontScale <= 0 {
		settings.FontScale = DefaultFontScale
	}
	return settings, nil
}

func (s *fileSettings) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An unreadable file is overwritten with defaults plus fn's changes.
	settings, _ := s.load()
	fn(&settings)

	data, err := yaml.Marshal(&settings)
	if err != nil {
		return settings, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return settings, fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return settings, fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return settings, fmt.Errorf("failed to replace settings: %w", err)
	}
	return settings, nil
}
