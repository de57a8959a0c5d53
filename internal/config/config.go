package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PostgresConfig enables the managed-backend registry origin. When set,
// recording rows come from this table instead of the registry document.
type PostgresConfig struct {
	// DSN is a pgx connection string.
	DSN string `yaml:"dsn" json:"dsn"`
	// Table is the recording table name; empty means the default
	// ingestion table.
	Table string `yaml:"table" json:"table"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the dashboard.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls the headless-browser PNG snapshot of the grid.
type CaptureConfig struct {
	// Enabled captures a snapshot after each successful refresh.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// OutputPath is where the PNG is written; /preview.png serves it.
	OutputPath string `yaml:"output_path" json:"output_path"`
	// Width / Height are the viewport dimensions in pixels.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone (e.g. "Europe/Paris").
	// Recording timestamps and week dates are interpreted in this zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") for
	// periodic snapshot refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// TimetableURL is the biweekly timetable document endpoint.
	TimetableURL string `yaml:"timetable_url" json:"timetable_url"`

	// RegistryURL is the recording registry document endpoint. Ignored
	// when Postgres is configured.
	RegistryURL string `yaml:"registry_url" json:"registry_url"`

	// CacheDir is the disk cache for conditional document fetches.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// SlotToleranceMin is how far (minutes) a lesson start may sit from
	// a period start and still resolve to it.
	SlotToleranceMin int `yaml:"slot_tolerance_min" json:"slot_tolerance_min"`

	// SpanToleranceMin is the minimum overlap (minutes) past the next
	// period's start for a lesson to claim that period as well.
	SpanToleranceMin int `yaml:"span_tolerance_min" json:"span_tolerance_min"`

	// Postgres, if non-nil, switches the registry origin to a table.
	Postgres *PostgresConfig `yaml:"postgres,omitempty" json:"postgres,omitempty"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// Capture configures the post-refresh PNG snapshot.
	Capture CaptureConfig `yaml:"capture" json:"capture"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		Timezone:         "Europe/Paris",
		RefreshCron:      "*/15 * * * *",
		TimetableURL:     "",
		RegistryURL:      "",
		CacheDir:         "./cache/feed",
		SlotToleranceMin: 15,
		SpanToleranceMin: 10,
		Capture: CaptureConfig{
			Enabled:    false,
			OutputPath: "./cache/preview.png",
			Width:      1280,
			Height:     1080,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Paris"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./cache/feed"
	}
	if c.SlotToleranceMin <= 0 {
		c.SlotToleranceMin = 15
	}
	if c.SpanToleranceMin <= 0 {
		c.SpanToleranceMin = 10
	}
	if c.Capture.OutputPath == "" {
		c.Capture.OutputPath = "./cache/preview.png"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 1080
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory, write a
//     default config with 0600 perms, and return the defaults.
//   - If the file exists: read, unmarshal, normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions; the Postgres DSN and basic-auth password live here.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".audiocal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
