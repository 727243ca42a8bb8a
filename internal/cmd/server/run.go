// Package server implements the `bunsho server` subcommand.
package server

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"bunsho/internal/config"
	"bunsho/internal/daemon"
	"bunsho/internal/logging"
)

// Run parses the server flags and starts the gateway until the process
// receives SIGINT or SIGTERM.
func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var configPath, logLevel string
	fs.StringVar(&configPath, "config", "bunsho.yaml", "path to the configuration file")
	fs.StringVar(&logLevel, "log-level", "", "override the configured log level: debug|info|warning|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := cfg.Log.Level
	if strings.TrimSpace(logLevel) != "" {
		level = logLevel
	}
	logger, err := logging.New(logging.Options{Level: level, JSON: cfg.Log.JSON})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.Run(ctx, daemon.Options{
		ConfigPath: configPath,
		Logger:     logger,
	})
}
