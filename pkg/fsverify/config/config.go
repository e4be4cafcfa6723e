package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/fsverify/pkg/fsverify/capture"
	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
)

// ErrInvalidConfig indicates a configuration value out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Components map[string]string `mapstructure:"components"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"` // Human size such as "10MiB"
	MaxAge     int    `mapstructure:"max_age"`  // Days
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// CacheConfig configures the digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // Empty means DefaultCachePath
}

// HistoryConfig configures the run history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"` // Empty means DefaultHistoryPath
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	MountPath  string `mapstructure:"mount_path"`
	ImageDir   string `mapstructure:"image_dir"`
	CaptureDir string `mapstructure:"capture_dir"`
	RecoverDir string `mapstructure:"recover_dir"`
	KeepImages bool   `mapstructure:"keep_images"`

	// Matrix is a YAML file describing the images to validate.
	// Empty means the built-in catalog.
	Matrix string `mapstructure:"matrix"`

	// Attributes limits the metadata checks. Empty means all.
	Attributes []string `mapstructure:"attributes"`

	Policy normalize.Policy `mapstructure:"policy"`

	// Tools overrides the Sleuth Kit binary names.
	Tools capture.Tools `mapstructure:"tools"`

	// Workers is the number of images validated in parallel.
	// 0 sizes the pool from the detected CPU and memory.
	Workers int    `mapstructure:"workers"`
	Output  string `mapstructure:"output"`

	Cache   CacheConfig   `mapstructure:"cache"`
	History HistoryConfig `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/fsverify/config.yaml
//   - $HOME/.config/fsverify/config.yaml
//
// Environment variables are prefixed with FSVERIFY_ (e.g., FSVERIFY_MOUNT_PATH).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, reading path instead of the
// default locations when it is not empty. A missing explicit file is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "fsverify"))
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "fsverify"))
	}

	v.SetEnvPrefix("FSVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.ImageDir, &cfg.CaptureDir, &cfg.RecoverDir, &cfg.Matrix, &cfg.Cache.Path, &cfg.History.Path, &cfg.Logging.Path} {
		if strings.HasPrefix(*p, "~") {
			*p = filepath.Join(homeDir, (*p)[1:])
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mount_path", DefaultMountPath)
	v.SetDefault("image_dir", DefaultImageDir)
	v.SetDefault("capture_dir", DefaultCaptureDir)
	v.SetDefault("recover_dir", DefaultRecoverDir)
	v.SetDefault("keep_images", false)
	v.SetDefault("matrix", "")
	v.SetDefault("attributes", []string{})
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("output", DefaultOutput)

	policy := normalize.DefaultPolicy()
	v.SetDefault("policy.exclude_conversion_backup", policy.ExcludeConversionBackup)
	v.SetDefault("policy.collapse_snapshot_duplicates", policy.CollapseSnapshotDuplicates)
	v.SetDefault("policy.zero_pseudo_entry_size", policy.ZeroPseudoEntrySize)
	v.SetDefault("policy.ignore", []string{})

	tools := capture.DefaultTools()
	v.SetDefault("tools.fls", tools.FLS)
	v.SetDefault("tools.ils", tools.ILS)
	v.SetDefault("tools.istat", tools.Istat)
	v.SetDefault("tools.recover", tools.Recover)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // Empty means use DefaultCachePath

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means use DefaultHistoryPath
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.components", map[string]string{
		"normalize": "info",
		"compare":   "info",
		"image":     "info",
		"capture":   "info",
		"watcher":   "warn",
	})
	v.SetDefault("logging.rotation.max_size", "10MiB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
}

// Validate checks values that the CLI cannot correct on its own.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("%w: history.retention_days must not be negative", ErrInvalidConfig)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "fsverify"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "fsverify"), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# fsverify configuration

# Where images are mounted for the stat listing
mount_path: %s

# Directory holding image files and their .md5 manifests
image_dir: %s

# Directory holding captured tool output, one subdirectory per image
capture_dir: %s

# Directory receiving files recovered by tsk_recover
recover_dir: %s

# Keep generated images after a run
keep_images: false

# YAML file listing the images to validate (empty means the built-in catalog)
matrix: ""

# Metadata checks to run (empty means all)
attributes: []

# Normalization applied to both views before comparison
policy:
  exclude_conversion_backup: true
  collapse_snapshot_duplicates: true
  zero_pseudo_entry_size: true
  ignore: []

# Sleuth Kit binaries
tools:
  fls: fls
  ils: ils
  istat: istat
  recover: tsk_recover

# Images validated in parallel (0 sizes the pool from CPU and memory)
workers: %d

# Report format: pretty, plain, json, jsonl, yaml
output: %s

# Digest cache for recovered files
cache:
  enabled: true
  # Empty means use default: $XDG_CACHE_HOME/fsverify/digests
  path: ""

# Run history
history:
  enabled: true
  # Empty means use default: $XDG_STATE_HOME/fsverify/history
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/fsverify/fsverify.log)
  path: ""
  # Per-component log levels
  components:
    normalize: info
    compare: info
    image: info
    capture: info
    watcher: warn
  # Log file rotation
  rotation:
    max_size: 10MiB
    max_age: 30
    max_backups: 5
    daily: true
`, DefaultMountPath, DefaultImageDir, DefaultCaptureDir, DefaultRecoverDir, DefaultWorkers, DefaultOutput, DefaultRetentionDays)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// StateDir returns $XDG_STATE_HOME/fsverify/ for logs and run history.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "fsverify")
}

// CacheDir returns $XDG_CACHE_HOME/fsverify/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "fsverify")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "fsverify.log")
}

// DefaultHistoryPath returns the default run history directory.
func DefaultHistoryPath() string {
	return filepath.Join(StateDir(), "history")
}

// DefaultCachePath returns the default digest cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "digests")
}

// LogPath returns the configured log path or the default.
func (c *Config) LogPath() string {
	if c.Logging.Path != "" {
		return c.Logging.Path
	}
	return DefaultLogPath()
}

// HistoryPath returns the configured history directory or the default.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return DefaultHistoryPath()
}

// CachePath returns the configured cache directory or the default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DefaultCachePath()
}
