package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/powerlight/internal/config"
)

// loadConfig reads --config and applies the --target and --log-level overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if target, _ := cmd.Flags().GetString("target"); target != "" {
		cfg.Target.Name = target
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// configureLogger creates a logger for cfg. --log-level is already folded
// into cfg.LogLevel by loadConfig and only the four documented levels are
// accepted.
func configureLogger(cfg *config.Config) (*logrus.Logger, error) {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	return cfg.NewLogger(), nil
}
