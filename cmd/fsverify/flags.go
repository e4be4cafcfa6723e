package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/jamesainslie/fsverify/pkg/fsverify/config"
	"github.com/jamesainslie/fsverify/pkg/fsverify/image"
	"github.com/jamesainslie/fsverify/pkg/fsverify/output"
	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
	"github.com/jamesainslie/fsverify/pkg/fsverify/tuner"
)

// errNoImages is returned when a selection leaves nothing to do.
var errNoImages = errors.New("no images selected")

// loadConfig loads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlagOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides copies flags the user set into cfg.
func applyFlagOverrides(cfg *config.Config) error {
	paths := []struct {
		key string
		dst *string
	}{
		{"mount_path", &cfg.MountPath},
		{"image_dir", &cfg.ImageDir},
		{"capture_dir", &cfg.CaptureDir},
		{"recover_dir", &cfg.RecoverDir},
		{"matrix", &cfg.Matrix},
	}
	for _, p := range paths {
		if !viper.IsSet(p.key) {
			continue
		}
		expanded, err := config.ExpandPath(viper.GetString(p.key))
		if err != nil {
			return err
		}
		*p.dst = expanded
	}

	if viper.IsSet("output") {
		cfg.Output = viper.GetString("output")
	}
	if viper.IsSet("workers") {
		cfg.Workers = viper.GetInt("workers")
	}
	if viper.IsSet("attributes") {
		cfg.Attributes = viper.GetStringSlice("attributes")
	}
	return nil
}

// buildLayout returns the directories image descriptors resolve against.
func buildLayout(cfg *config.Config) image.Layout {
	return image.Layout{
		ImageDir:   cfg.ImageDir,
		CaptureDir: cfg.CaptureDir,
		MountPath:  cfg.MountPath,
		RecoverDir: cfg.RecoverDir,
	}
}

// buildMatrix selects the images to work on. The base is the configured
// matrix file or the built-in catalog; names select from it. Custom images
// are appended, and replace the base when no names are given.
func buildMatrix(cfg *config.Config, names, customImages []string) (image.Matrix, error) {
	layout := buildLayout(cfg)

	m := image.DefaultMatrix(layout)
	if cfg.Matrix != "" {
		loaded, err := image.LoadMatrix(cfg.Matrix, layout)
		if err != nil {
			return image.Matrix{}, err
		}
		m = loaded
	}

	switch {
	case len(names) > 0:
		selected, err := m.Select(names)
		if err != nil {
			return image.Matrix{}, err
		}
		m = selected
	case len(customImages) > 0:
		m = image.Matrix{}
	}

	for _, p := range customImages {
		abs, err := filepath.Abs(p)
		if err != nil {
			return image.Matrix{}, fmt.Errorf("resolving image %s: %w", p, err)
		}
		m.Images = append(m.Images, layout.Apply(image.Custom(abs)))
	}

	if len(m.Images) == 0 {
		return image.Matrix{}, errNoImages
	}
	if err := m.Validate(); err != nil {
		return image.Matrix{}, err
	}
	return m, nil
}

// parseAttributes converts attribute names. Empty means every attribute.
func parseAttributes(names []string) ([]record.Attribute, error) {
	if len(names) == 0 {
		return record.AllAttributes(), nil
	}
	attrs := make([]record.Attribute, 0, len(names))
	seen := make(map[record.Attribute]bool)
	for _, n := range names {
		a, err := record.ParseAttribute(n)
		if err != nil {
			return nil, err
		}
		if !seen[a] {
			seen[a] = true
			attrs = append(attrs, a)
		}
	}
	return attrs, nil
}

// planWorkers sizes the image and hash pools. A positive workers value
// overrides the detected image parallelism.
func planWorkers(workers int) tuner.Plan {
	resources, err := tuner.Detect()
	if err != nil {
		printVerbose("Failed to detect system resources, using defaults: %v", err)
		resources = tuner.SystemResources{
			CPUCores:     4,
			TotalRAM:     8 << 30,
			AvailableRAM: 4 << 30,
		}
	}

	plan := tuner.CalculateWithOverrides(resources, workers, 0)
	printVerbose("Config: %d image workers, %d hash workers (%d CPUs)",
		plan.ImageWorkers, plan.HashWorkers, resources.CPUCores)
	return plan
}

// getFormatter returns the formatter for format, honouring --template.
func getFormatter(format string) (output.Formatter, error) {
	if format == "" {
		format = config.DefaultOutput
	}
	if format == "template" {
		tmplStr := viper.GetString("template")
		if tmplStr == "" {
			return nil, fmt.Errorf("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmplStr), nil
	}

	formatter, err := output.Get(format)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", format, output.Available())
	}
	return formatter, nil
}

// writeResult formats r and writes it to w.
func writeResult(w io.Writer, f output.Formatter, r *output.Result) error {
	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
