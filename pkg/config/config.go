package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/blradar/internal/engine"
	"github.com/srg/blradar/internal/following"
)

// Config holds application configuration
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"table"` // table, json

	ScanWindow   time.Duration `yaml:"scan_window" default:"10s"`
	ProfilesPath string        `yaml:"profiles"`

	Following        following.Config `yaml:"following"`
	NotifyCooldown   time.Duration    `yaml:"notify_cooldown" default:"10m"`
	HistoryRetention time.Duration    `yaml:"history_retention" default:"24h"`
	Workers          int              `yaml:"workers" default:"4"`
	ReorderByCost    bool             `yaml:"reorder_by_cost" default:"true"`
	MatchBuffer      uint32           `yaml:"match_buffer" default:"256"`
	VendorCacheTTL   time.Duration    `yaml:"vendor_cache_ttl" default:"1h"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file on top of the defaults. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("output_format: unsupported format %q (use table or json)", c.OutputFormat)
	}
	if c.ScanWindow <= 0 {
		return fmt.Errorf("scan_window must be positive, got %s", c.ScanWindow)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.NotifyCooldown < 0 {
		return fmt.Errorf("notify_cooldown must not be negative, got %s", c.NotifyCooldown)
	}
	if c.HistoryRetention <= 0 {
		return fmt.Errorf("history_retention must be positive, got %s", c.HistoryRetention)
	}
	if c.VendorCacheTTL < 0 {
		return fmt.Errorf("vendor_cache_ttl must not be negative, got %s", c.VendorCacheTTL)
	}
	if c.Following.MinSegmentMeters < 0 || c.Following.MinDisplacementMeters < 0 {
		return fmt.Errorf("following thresholds must not be negative")
	}
	return nil
}

// Level returns the parsed log level, InfoLevel when it does not parse.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// EngineConfig maps the evaluation settings onto engine.Config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Following:      c.Following,
		ReorderByCost:  c.ReorderByCost,
		Workers:        c.Workers,
		NotifyCooldown: c.NotifyCooldown,
		MatchBuffer:    c.MatchBuffer,
	}
}
