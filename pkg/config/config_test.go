package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blradar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, 10*time.Second, cfg.ScanWindow)
	assert.Empty(t, cfg.ProfilesPath)
	assert.Equal(t, 300.0, cfg.Following.MinSegmentMeters)
	assert.Equal(t, 300.0, cfg.Following.MinDisplacementMeters)
	assert.Equal(t, 10*time.Minute, cfg.NotifyCooldown)
	assert.Equal(t, 24*time.Hour, cfg.HistoryRetention)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.ReorderByCost)
	assert.Equal(t, uint32(256), cfg.MatchBuffer)
	assert.Equal(t, time.Hour, cfg.VendorCacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
scan_window: 5s
profiles: ./profiles.yaml
following:
  min_segment_meters: 500
notify_cooldown: 0s
reorder_by_cost: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ScanWindow)
	assert.Equal(t, "./profiles.yaml", cfg.ProfilesPath)
	assert.Equal(t, 500.0, cfg.Following.MinSegmentMeters)
	assert.Equal(t, 300.0, cfg.Following.MinDisplacementMeters, "unset keys keep their defaults")
	assert.Zero(t, cfg.NotifyCooldown)
	assert.False(t, cfg.ReorderByCost)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			wantErr: "failed to read config",
		},
		{
			name:    "malformed yaml",
			path:    func(t *testing.T) string { return writeConfig(t, "workers: [1, 2") },
			wantErr: "failed to parse config",
		},
		{
			name:    "invalid value",
			path:    func(t *testing.T) string { return writeConfig(t, "workers: 0") },
			wantErr: "workers must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log_level"},
		{name: "unknown format", mutate: func(c *Config) { c.OutputFormat = "csv" }, wantErr: "output_format"},
		{name: "zero scan window", mutate: func(c *Config) { c.ScanWindow = 0 }, wantErr: "scan_window"},
		{name: "negative cooldown", mutate: func(c *Config) { c.NotifyCooldown = -time.Second }, wantErr: "notify_cooldown"},
		{name: "zero retention", mutate: func(c *Config) { c.HistoryRetention = 0 }, wantErr: "history_retention"},
		{name: "negative cache ttl", mutate: func(c *Config) { c.VendorCacheTTL = -time.Second }, wantErr: "vendor_cache_ttl"},
		{name: "negative threshold", mutate: func(c *Config) { c.Following.MinDisplacementMeters = -1 }, wantErr: "following"},
		{name: "json format is valid", mutate: func(c *Config) { c.OutputFormat = "json" }},
		{name: "zero cooldown is valid", mutate: func(c *Config) { c.NotifyCooldown = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected logrus.Level
	}{
		{name: "debug level", level: "debug", expected: logrus.DebugLevel},
		{name: "warn level", level: "warn", expected: logrus.WarnLevel},
		{name: "error level", level: "error", expected: logrus.ErrorLevel},
		{name: "unparsable level falls back to info", level: "", expected: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}

			logger := cfg.NewLogger()
			assert.Equal(t, tt.expected, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_EngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.ReorderByCost = false

	ec := cfg.EngineConfig()
	assert.Equal(t, cfg.Following, ec.Following)
	assert.False(t, ec.ReorderByCost)
	assert.Equal(t, 2, ec.Workers)
	assert.Equal(t, 10*time.Minute, ec.NotifyCooldown)
	assert.Equal(t, uint32(256), ec.MatchBuffer)
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}
