package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/fsverify/pkg/fsverify/image"
	"github.com/jamesainslie/fsverify/pkg/fsverify/output"
	"github.com/jamesainslie/fsverify/pkg/fsverify/watcher"
)

var (
	watchDebounce time.Duration
	watchInitial  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [image...]",
	Short: "Re-validate images when their captures change",
	Long: `Watch the capture directories of the selected images and validate an
image again once its captures stop changing for the debounce interval.
Images without a capture directory are skipped.`,
	Args: cobra.ArbitraryArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before re-validating")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "validate every watched image once at start")
	watchCmd.Flags().BoolVar(&noContent, "no-content", false, "skip the content check")
	watchCmd.Flags().BoolVar(&noInspect, "no-inspect", false, "skip the per-inode istat cross-check")
	watchCmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the digest cache")
	rootCmd.AddCommand(watchCmd)
}

// runWatch validates images whenever their capture directories settle.
func runWatch(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := buildMatrix(cfg, args, nil)
	if err != nil {
		return err
	}

	formatter, err := getFormatter(cfg.Output)
	if err != nil {
		return err
	}

	opts, closeCache, err := validateOptions(cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	opts = append(opts, image.WithHashWorkers(planWorkers(cfg.Workers).HashWorkers))

	w, err := watcher.New()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Keyed by absolute capture directory, the form the watcher reports.
	byRoot := make(map[string]image.Descriptor)
	for _, desc := range m.Images {
		if err := w.Watch(desc.Captures); err != nil {
			printVerbose("Not watching %s: %v", desc.Name, err)
			continue
		}
		abs, err := filepath.Abs(desc.Captures)
		if err != nil {
			return err
		}
		byRoot[abs] = desc
	}
	if len(byRoot) == 0 {
		return fmt.Errorf("%w: no capture directories to watch", errNoImages)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := func(desc image.Descriptor) {
		outcome, _ := image.Validate(ctx, desc, image.DirSource{Dir: desc.Captures}, opts...)
		result := output.NewResult([]*image.Outcome{outcome}, outcome.Duration)
		if err := writeResult(os.Stdout, formatter, result); err != nil {
			printError("%v", err)
		}
	}

	if watchInitial {
		for _, root := range w.Roots() {
			validate(byRoot[root])
		}
	}

	printInfo("Watching %d capture directories (Ctrl+C to stop)", len(byRoot))
	w.Run(ctx, watchDebounce, func(root string) {
		if desc, ok := byRoot[root]; ok {
			validate(desc)
		}
	})
	return nil
}
