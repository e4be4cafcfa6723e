package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MountPath != DefaultMountPath {
		t.Errorf("MountPath = %q, want %q", cfg.MountPath, DefaultMountPath)
	}
	if cfg.CaptureDir != DefaultCaptureDir {
		t.Errorf("CaptureDir = %q, want %q", cfg.CaptureDir, DefaultCaptureDir)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("Output = %q, want %q", cfg.Output, DefaultOutput)
	}
	if !cfg.Policy.ExcludeConversionBackup || !cfg.Policy.CollapseSnapshotDuplicates || !cfg.Policy.ZeroPseudoEntrySize {
		t.Errorf("Policy = %+v, want all switches on", cfg.Policy)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled = false, want true")
	}
	if cfg.History.RetentionDays != DefaultRetentionDays {
		t.Errorf("History.RetentionDays = %d, want %d", cfg.History.RetentionDays, DefaultRetentionDays)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if rot := cfg.Logging.Rotation; rot.MaxSize != "10MiB" || rot.MaxBackups != 5 || !rot.Daily {
		t.Errorf("Logging.Rotation = %+v, want 10MiB, 5 backups, daily", rot)
	}
	if cfg.Tools.FLS != "fls" || cfg.Tools.Recover != "tsk_recover" {
		t.Errorf("Tools = %+v, want Sleuth Kit defaults", cfg.Tools)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, ".config", "fsverify")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
mount_path: /mnt/test
capture_dir: ~/captures
workers: 4
output: json
attributes: [uid, gid]
policy:
  exclude_conversion_backup: false
  collapse_snapshot_duplicates: true
  zero_pseudo_entry_size: false
  ignore:
    - "lost+found/**"
history:
  enabled: false
  retention_days: 7
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MountPath != "/mnt/test" {
		t.Errorf("MountPath = %q, want /mnt/test", cfg.MountPath)
	}
	if want := filepath.Join(tempDir, "captures"); cfg.CaptureDir != want {
		t.Errorf("CaptureDir = %q, want %q", cfg.CaptureDir, want)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if len(cfg.Attributes) != 2 {
		t.Errorf("Attributes = %v, want 2 entries", cfg.Attributes)
	}
	if cfg.Policy.ExcludeConversionBackup || !cfg.Policy.CollapseSnapshotDuplicates || cfg.Policy.ZeroPseudoEntrySize {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if len(cfg.Policy.Ignore) != 1 || cfg.Policy.Ignore[0] != "lost+found/**" {
		t.Errorf("Policy.Ignore = %v", cfg.Policy.Ignore)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled = true, want false")
	}
	if cfg.History.RetentionDays != 7 {
		t.Errorf("History.RetentionDays = %d, want 7", cfg.History.RetentionDays)
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	tempDir := t.TempDir()
	xdgConfigDir := filepath.Join(tempDir, "xdg-config", "fsverify")
	if err := os.MkdirAll(xdgConfigDir, 0o755); err != nil {
		t.Fatalf("failed to create XDG config dir: %v", err)
	}

	if err := os.WriteFile(filepath.Join(xdgConfigDir, "config.yaml"), []byte(`mount_path: /xdg`), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg-config"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MountPath != "/xdg" {
		t.Errorf("MountPath = %q, want /xdg", cfg.MountPath)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("FSVERIFY_MOUNT_PATH", "/env/mount")
	t.Setenv("FSVERIFY_POLICY_ZERO_PSEUDO_ENTRY_SIZE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MountPath != "/env/mount" {
		t.Errorf("MountPath = %q, want /env/mount", cfg.MountPath)
	}
	if cfg.Policy.ZeroPseudoEntrySize {
		t.Error("Policy.ZeroPseudoEntrySize = true, want false from env")
	}
}

func TestLoadFile(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	path := filepath.Join(tempDir, "custom.yaml")
	if err := os.WriteFile(path, []byte("workers: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}

	if _, err := LoadFile(filepath.Join(tempDir, "missing.yaml")); err == nil {
		t.Error("LoadFile() on a missing explicit file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"negative retention", func(c *Config) { c.History.RetentionDays = -1 }},
		{"bad glob", func(c *Config) { c.Policy.Ignore = []string{"[oops"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv("XDG_CONFIG_HOME", "")
			cfg, err := Load()
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if dir != "/custom/config/fsverify" {
			t.Errorf("ConfigDir() = %q, want /custom/config/fsverify", dir)
		}
	})

	t.Run("uses HOME/.config when XDG_CONFIG_HOME not set", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("HOME", tempDir)
		t.Setenv("XDG_CONFIG_HOME", "")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if expected := filepath.Join(tempDir, ".config", "fsverify"); dir != expected {
			t.Errorf("ConfigDir() = %q, want %q", dir, expected)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")

	if err := WriteDefault(); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	configPath := filepath.Join(tempDir, ".config", "fsverify", "config.yaml")
	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if !strings.Contains(string(content), "mount_path: "+DefaultMountPath) {
		t.Errorf("default config missing mount_path:\n%s", content)
	}

	// The written file must load back to the defaults.
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() after WriteDefault error = %v", err)
	}
	if cfg.Output != DefaultOutput || cfg.Workers != DefaultWorkers {
		t.Errorf("loaded %q/%d, want defaults", cfg.Output, cfg.Workers)
	}

	// An existing file is left alone.
	if err := os.WriteFile(configPath, []byte("workers: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteDefault(); err != nil {
		t.Fatal(err)
	}
	content, _ = os.ReadFile(configPath)
	if string(content) != "workers: 9\n" {
		t.Error("WriteDefault() overwrote an existing config")
	}
}

func TestExpandPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	got, err := ExpandPath("~/x")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(tempDir, "x") {
		t.Errorf("ExpandPath(~/x) = %q", got)
	}
	if got, _ := ExpandPath("/abs"); got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %q", got)
	}
}

func TestPathAccessors(t *testing.T) {
	cfg := &Config{}
	if cfg.HistoryPath() != DefaultHistoryPath() {
		t.Errorf("HistoryPath() = %q", cfg.HistoryPath())
	}
	if cfg.CachePath() != DefaultCachePath() {
		t.Errorf("CachePath() = %q", cfg.CachePath())
	}
	if !strings.HasSuffix(cfg.LogPath(), filepath.Join("fsverify", "fsverify.log")) {
		t.Errorf("LogPath() = %q", cfg.LogPath())
	}

	cfg.History.Path = "/h"
	if cfg.HistoryPath() != "/h" {
		t.Errorf("HistoryPath() = %q, want /h", cfg.HistoryPath())
	}
}
