package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/fsverify/pkg/fsverify/capture"
	"github.com/jamesainslie/fsverify/pkg/fsverify/config"
	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage fsverify configuration settings.

Configuration is loaded from:
  1. --config <file> (if given)
  2. $XDG_CONFIG_HOME/fsverify/config.yaml (if set)
  3. ~/.config/fsverify/config.yaml

Environment variables can override config file settings using the FSVERIFY_ prefix:
  FSVERIFY_MOUNT_PATH=/mnt/image
  FSVERIFY_WORKERS=4
  FSVERIFY_HISTORY_ENABLED=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after files, environment and flags are applied.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configView is the YAML rendering of the effective configuration.
type configView struct {
	MountPath  string           `yaml:"mount_path"`
	ImageDir   string           `yaml:"image_dir"`
	CaptureDir string           `yaml:"capture_dir"`
	RecoverDir string           `yaml:"recover_dir"`
	KeepImages bool             `yaml:"keep_images"`
	Matrix     string           `yaml:"matrix"`
	Attributes []string         `yaml:"attributes"`
	Policy     normalize.Policy `yaml:"policy"`
	Tools      capture.Tools    `yaml:"tools"`
	Workers    int              `yaml:"workers"`
	Output     string           `yaml:"output"`
	Cache      struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"cache"`
	History struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"history"`
	Logging struct {
		Level      string            `yaml:"level"`
		Path       string            `yaml:"path"`
		Components map[string]string `yaml:"components"`
	} `yaml:"logging"`
}

func newConfigView(cfg *config.Config) configView {
	v := configView{
		MountPath:  cfg.MountPath,
		ImageDir:   cfg.ImageDir,
		CaptureDir: cfg.CaptureDir,
		RecoverDir: cfg.RecoverDir,
		KeepImages: cfg.KeepImages,
		Matrix:     cfg.Matrix,
		Attributes: cfg.Attributes,
		Policy:     cfg.Policy,
		Tools:      cfg.Tools,
		Workers:    cfg.Workers,
		Output:     cfg.Output,
	}
	v.Cache.Enabled = cfg.Cache.Enabled
	v.Cache.Path = cfg.CachePath()
	v.History.Enabled = cfg.History.Enabled
	v.History.Path = cfg.HistoryPath()
	v.History.RetentionDays = cfg.History.RetentionDays
	v.Logging.Level = cfg.Logging.Level
	v.Logging.Path = cfg.LogPath()
	v.Logging.Components = cfg.Logging.Components
	return v
}

// runConfigShow displays the effective configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfgFile
	if path == "" {
		path, err = config.ConfigPath()
		if err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("# Config file: %s\n", path)
	} else {
		fmt.Println("# Config file: (using defaults, no file found)")
	}

	data, err := yaml.Marshal(newConfigView(cfg))
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Print(string(data))

	anyOverrides := false
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "FSVERIFY_") {
			if !anyOverrides {
				fmt.Println("\n# Environment overrides:")
				anyOverrides = true
			}
			fmt.Printf("#   %s\n", kv)
		}
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'fsverify config edit' to modify it.")
		return nil
	}

	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	fmt.Println(configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
