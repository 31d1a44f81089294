// Package config loads the powerlight YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/powerlight/internal/bledb"
	"github.com/srg/powerlight/internal/powermeter"
)

// Config holds application configuration
type Config struct {
	Target   TargetConfig   `yaml:"target"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Scan     ScanConfig     `yaml:"scan"`
	Rider    RiderConfig    `yaml:"rider"`
	Hue      HueConfig      `yaml:"hue"`
	Display  DisplayConfig  `yaml:"display"`
	LogLevel string         `yaml:"log_level" default:"info"`
}

// TargetConfig names the peripheral and the attributes to follow. UUIDs may
// be given in short or full form.
type TargetConfig struct {
	Name           string `yaml:"name" default:"KICKR CORE 5D21"`
	Service        string `yaml:"service" default:"1818"`
	Characteristic string `yaml:"characteristic" default:"2a63"`
}

// WatchdogConfig sets how often link liveness is checked.
type WatchdogConfig struct {
	Period time.Duration `yaml:"period" default:"1s"`
}

// ScanConfig holds LE scan parameters in 0.625 ms units.
type ScanConfig struct {
	Active   bool   `yaml:"active" default:"true"`
	Interval uint16 `yaml:"interval" default:"48"`
	Window   uint16 `yaml:"window" default:"48"`
}

type RiderConfig struct {
	FTP             uint16 `yaml:"ftp" default:"227"`
	SmoothingWindow int    `yaml:"smoothing_window" default:"3"`
}

// HueConfig locates the light group on a Hue bridge.
type HueConfig struct {
	Enabled        bool          `yaml:"enabled" default:"false"`
	Address        string        `yaml:"address"`
	User           string        `yaml:"user"`
	Group          string        `yaml:"group" default:"0"`
	UpdateInterval time.Duration `yaml:"update_interval" default:"1s"`
	StuckAfter     time.Duration `yaml:"stuck_after" default:"5s"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"4s"`
}

type DisplayConfig struct {
	LogLines int `yaml:"log_lines" default:"8"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Target.Name == "" {
		errs = append(errs, errors.New("target.name must not be empty"))
	}
	if _, err := bledb.ShortUUID(c.Target.Service); err != nil {
		errs = append(errs, fmt.Errorf("target.service: %w", err))
	}
	if _, err := bledb.ShortUUID(c.Target.Characteristic); err != nil {
		errs = append(errs, fmt.Errorf("target.characteristic: %w", err))
	}
	if c.Watchdog.Period <= 0 {
		errs = append(errs, errors.New("watchdog.period must be > 0"))
	}
	if c.Scan.Window > c.Scan.Interval {
		errs = append(errs, fmt.Errorf("scan.window (%d) must not exceed scan.interval (%d)", c.Scan.Window, c.Scan.Interval))
	}
	if c.Rider.FTP == 0 {
		errs = append(errs, errors.New("rider.ftp must be > 0"))
	}
	if c.Rider.SmoothingWindow < 1 {
		errs = append(errs, errors.New("rider.smoothing_window must be >= 1"))
	}
	if c.Hue.Enabled {
		if c.Hue.Address == "" {
			errs = append(errs, errors.New("hue.address must be set when hue is enabled"))
		}
		if c.Hue.User == "" {
			errs = append(errs, errors.New("hue.user must be set when hue is enabled"))
		}
	}
	if c.Display.LogLines < 1 {
		errs = append(errs, errors.New("display.log_lines must be >= 1"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	return errors.Join(errs...)
}

// PowermeterTarget converts the target section. Call Validate first.
func (c *Config) PowermeterTarget() (powermeter.Target, error) {
	svc, err := bledb.ShortUUID(c.Target.Service)
	if err != nil {
		return powermeter.Target{}, fmt.Errorf("target.service: %w", err)
	}
	char, err := bledb.ShortUUID(c.Target.Characteristic)
	if err != nil {
		return powermeter.Target{}, fmt.Errorf("target.characteristic: %w", err)
	}
	return powermeter.Target{Name: c.Target.Name, Service: svc, Characteristic: char}, nil
}

// ScanParams converts the scan section.
func (c *Config) ScanParams() powermeter.ScanParams {
	return powermeter.ScanParams{
		Active:   c.Scan.Active,
		Interval: c.Scan.Interval,
		Window:   c.Scan.Window,
	}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
