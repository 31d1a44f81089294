package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/powerlight/internal/bledb"
	"github.com/srg/powerlight/internal/powermeter"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "powerlight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "KICKR CORE 5D21", cfg.Target.Name)
	assert.Equal(t, "1818", cfg.Target.Service)
	assert.Equal(t, "2a63", cfg.Target.Characteristic)
	assert.Equal(t, time.Second, cfg.Watchdog.Period)
	assert.True(t, cfg.Scan.Active)
	assert.Equal(t, uint16(48), cfg.Scan.Interval)
	assert.Equal(t, uint16(48), cfg.Scan.Window)
	assert.Equal(t, uint16(227), cfg.Rider.FTP)
	assert.Equal(t, 3, cfg.Rider.SmoothingWindow)
	assert.False(t, cfg.Hue.Enabled)
	assert.Equal(t, "0", cfg.Hue.Group)
	assert.Equal(t, time.Second, cfg.Hue.UpdateInterval)
	assert.Equal(t, 5*time.Second, cfg.Hue.StuckAfter)
	assert.Equal(t, 8, cfg.Display.LogLines)
	assert.Equal(t, "info", cfg.LogLevel)

	require.NoError(t, cfg.Validate(), "defaults MUST be valid")
}

func TestDefaultMatchesPowermeterDefaults(t *testing.T) {
	cfg := Default()

	target, err := cfg.PowermeterTarget()
	require.NoError(t, err)
	assert.Equal(t, powermeter.DefaultTarget(), target)
	assert.Equal(t, powermeter.DefaultScanParams(), cfg.ScanParams())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
target:
  name: "KICKR SNAP 1234"
  characteristic: "00002A63-0000-1000-8000-00805F9B34FB"
rider:
  ftp: 250
hue:
  enabled: true
  address: 192.168.1.2
  user: abc123
  group: "3"
  update_interval: 2s
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "KICKR SNAP 1234", cfg.Target.Name)
	assert.Equal(t, "1818", cfg.Target.Service, "unset fields MUST keep defaults")
	assert.Equal(t, uint16(250), cfg.Rider.FTP)
	assert.Equal(t, 3, cfg.Rider.SmoothingWindow)
	assert.Equal(t, 2*time.Second, cfg.Hue.UpdateInterval)
	assert.Equal(t, 5*time.Second, cfg.Hue.StuckAfter)
	assert.Equal(t, "3", cfg.Hue.Group)

	target, err := cfg.PowermeterTarget()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x2A63), target.Characteristic)
	assert.Equal(t, logrus.DebugLevel, cfg.NewLogger().GetLevel())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "rider: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"empty target name", func(c *Config) { c.Target.Name = "" }, "target.name"},
		{"custom service uuid", func(c *Config) { c.Target.Service = "6e400001-b5a3-f393-e0a9-e50e24dcca9e" }, "target.service"},
		{"bad characteristic", func(c *Config) { c.Target.Characteristic = "xyz" }, "target.characteristic"},
		{"zero watchdog", func(c *Config) { c.Watchdog.Period = 0 }, "watchdog.period"},
		{"window above interval", func(c *Config) { c.Scan.Window = 96 }, "scan.window"},
		{"zero ftp", func(c *Config) { c.Rider.FTP = 0 }, "rider.ftp"},
		{"zero smoothing", func(c *Config) { c.Rider.SmoothingWindow = 0 }, "rider.smoothing_window"},
		{"hue without address", func(c *Config) { c.Hue.Enabled = true; c.Hue.User = "u" }, "hue.address"},
		{"hue without user", func(c *Config) { c.Hue.Enabled = true; c.Hue.Address = "a" }, "hue.user"},
		{"zero log lines", func(c *Config) { c.Display.LogLines = 0 }, "display.log_lines"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Target.Name = ""
	cfg.Rider.FTP = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.name")
	assert.Contains(t, err.Error(), "rider.ftp")
}

func TestPowermeterTargetInvalid(t *testing.T) {
	cfg := Default()
	cfg.Target.Service = "zz"
	_, err := cfg.PowermeterTarget()
	require.ErrorIs(t, err, bledb.ErrInvalidUUID)
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{"debug", "debug", logrus.DebugLevel},
		{"warn", "warn", logrus.WarnLevel},
		{"invalid falls back to info", "loud", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
