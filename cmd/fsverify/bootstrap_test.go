package main

import (
	"os"
	"testing"

	"github.com/jamesainslie/fsverify/pkg/fsverify/config"
	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
)

func TestConsoleLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		want    string
	}{
		{name: "default", want: "warn"},
		{name: "verbose", verbose: true, want: "debug"},
		{name: "quiet", quiet: true, want: ""},
		{name: "quiet wins", verbose: true, quiet: true, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := consoleLevel(tt.verbose, tt.quiet); got != tt.want {
				t.Errorf("consoleLevel(%v, %v) = %q, want %q", tt.verbose, tt.quiet, got, tt.want)
			}
		})
	}
}

func TestInitializeLoggingEnsuresDirectories(t *testing.T) {
	// XDG paths are cached at package init time, so the real state and
	// cache directories are checked.
	if err := initializeLogging(nil, nil); err != nil {
		t.Fatalf("initializeLogging() returned error: %v", err)
	}
	defer func() { _ = logging.Close() }()

	for _, dir := range []string{config.StateDir(), config.CacheDir()} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("directory was not created: %s", dir)
		}
	}
}

func TestInitializeLoggingBadConfigFile(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	if err := os.WriteFile(path, []byte("logging: [not, a, map"), 0o644); err != nil {
		t.Fatal(err)
	}

	old := cfgFile
	cfgFile = path
	defer func() { cfgFile = old }()

	if err := initializeLogging(nil, nil); err != nil {
		t.Errorf("initializeLogging() with unreadable config = %v, want defaults", err)
	}
	_ = logging.Close()

	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() with unreadable config returned nil error")
	}
}

func TestParseRotationConfig(t *testing.T) {
	def := logging.DefaultRotationConfig().MaxSize

	tests := []struct {
		name     string
		in       config.RotationConfig
		wantSize int64
	}{
		{name: "binary units", in: config.RotationConfig{MaxSize: "10MiB"}, wantSize: 10 << 20},
		{name: "decimal units", in: config.RotationConfig{MaxSize: "1GB"}, wantSize: 1000 * 1000 * 1000},
		{name: "empty uses default", in: config.RotationConfig{}, wantSize: def},
		{name: "invalid uses default", in: config.RotationConfig{MaxSize: "lots"}, wantSize: def},
		{name: "zero uses default", in: config.RotationConfig{MaxSize: "0B"}, wantSize: def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRotationConfig(tt.in)
			if got.MaxSize != tt.wantSize {
				t.Errorf("MaxSize = %d, want %d", got.MaxSize, tt.wantSize)
			}
		})
	}

	got := parseRotationConfig(config.RotationConfig{MaxAge: 7, MaxBackups: 3, Daily: true})
	if got.MaxAge != 7 || got.MaxBackups != 3 || !got.Daily {
		t.Errorf("parseRotationConfig() = %+v, want age 7, backups 3, daily", got)
	}
}
