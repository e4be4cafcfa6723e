package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/fsverify/pkg/fsverify/capture"
	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
)

var (
	captureReplace   bool
	captureNoIstat   bool
	captureNoRecover bool
	captureImages    []string
)

var captureCmd = &cobra.Command{
	Use:   "capture [image...]",
	Short: "Capture tool output for images",
	Long: `Run fls, ils, istat and tsk_recover against each image and walk its
mount point, writing everything into the image's capture directory:

  <capture_dir>/<name>/fls.txt
  <capture_dir>/<name>/ils.txt
  <capture_dir>/<name>/stat.txt
  <capture_dir>/<name>/istat/<inode>.txt
  <capture_dir>/<name>/recovered/

The image must already be mounted at the configured mount point. Images
are captured one at a time since they share it.`,
	Args: cobra.ArbitraryArgs,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().BoolVar(&captureReplace, "replace", false, "replace existing capture directories (moved to trash when possible)")
	captureCmd.Flags().BoolVar(&captureNoIstat, "no-istat", false, "skip per-inode istat output")
	captureCmd.Flags().BoolVar(&captureNoRecover, "no-recover", false, "skip tsk_recover")
	captureCmd.Flags().StringSliceVar(&captureImages, "image", nil, "custom image file (repeatable)")
	rootCmd.AddCommand(captureCmd)
}

// runCapture writes capture directories for the selected images.
func runCapture(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := buildMatrix(cfg, args, captureImages)
	if err != nil {
		return err
	}

	runner := capture.NewRunner(capture.WithTools(cfg.Tools), capture.WithLogger(logging.Get("capture")))
	if err := runner.Check(); err != nil {
		return fmt.Errorf("forensic tools unavailable: %w", err)
	}

	plan := planWorkers(cfg.Workers)
	opts := []capture.Option{capture.WithWorkers(plan.HashWorkers)}
	if captureReplace {
		opts = append(opts, capture.WithReplace())
	}
	if captureNoIstat {
		opts = append(opts, capture.WithoutIstat())
	}
	if captureNoRecover {
		opts = append(opts, capture.WithoutRecover())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var errs []error
	for _, desc := range m.Images {
		printVerbose("Capturing %s from %s (mounted at %s)", desc.Name, desc.Image, desc.Mount)

		sum, err := capture.WriteDir(ctx, runner, desc, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", desc.Name, err))
			if ctx.Err() != nil {
				break
			}
			printError("%s: %v", desc.Name, err)
			continue
		}

		printInfo("%s: %s entries, %s inodes -> %s",
			desc.Name, humanize.Comma(int64(sum.Entries)), humanize.Comma(int64(sum.Inodes)), sum.Dir)
		if sum.IstatFailures > 0 {
			printInfo("  %d istat runs failed; their inodes will be reported as mismatches", sum.IstatFailures)
		}
	}
	return errors.Join(errs...)
}
