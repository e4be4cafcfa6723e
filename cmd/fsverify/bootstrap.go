package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/fsverify/pkg/fsverify/config"
	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
)

// initializeLogging is the root PersistentPreRunE hook. It creates the XDG
// state and cache directories and configures logging from the config file.
// A config file that fails to load only costs its logging settings here;
// commands report the error when they load the configuration themselves.
func initializeLogging(_ *cobra.Command, _ []string) error {
	for _, dir := range []string{config.StateDir(), config.CacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	logCfg := logging.Config{
		Level:        "info",
		Path:         config.DefaultLogPath(),
		ConsoleLevel: consoleLevel(getVerbose(), getQuiet()),
		Rotation:     logging.DefaultRotationConfig(),
	}
	if cfg, err := config.LoadFile(cfgFile); err == nil {
		if cfg.Logging.Level != "" {
			logCfg.Level = cfg.Logging.Level
		}
		logCfg.Path = cfg.LogPath()
		logCfg.Components = cfg.Logging.Components
		logCfg.Rotation = parseRotationConfig(cfg.Logging.Rotation)
	}

	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	return nil
}

// parseRotationConfig converts the file settings into a rotation config.
// An unparsable max_size falls back to the default size.
func parseRotationConfig(cfg config.RotationConfig) logging.RotationConfig {
	rot := logging.RotationConfig{
		MaxSize:    logging.DefaultRotationConfig().MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Daily:      cfg.Daily,
	}
	if cfg.MaxSize != "" {
		if n, err := humanize.ParseBytes(cfg.MaxSize); err == nil && n > 0 {
			rot.MaxSize = int64(n)
		}
	}
	return rot
}

// consoleLevel maps the verbosity flags to the stderr log level.
// Quiet wins over verbose and disables console logging.
func consoleLevel(verbose, quiet bool) string {
	switch {
	case quiet:
		return ""
	case verbose:
		return "debug"
	default:
		return "warn"
	}
}
