package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/fsverify/pkg/fsverify/cache"
	"github.com/jamesainslie/fsverify/pkg/fsverify/capture"
	"github.com/jamesainslie/fsverify/pkg/fsverify/config"
	"github.com/jamesainslie/fsverify/pkg/fsverify/history"
	"github.com/jamesainslie/fsverify/pkg/fsverify/image"
	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
	"github.com/jamesainslie/fsverify/pkg/fsverify/output"
)

// errValidationFailed is returned when the run completed but at least one
// image did not pass. main exits non-zero without printing it.
var errValidationFailed = errors.New("validation failed")

var (
	customImages []string
	liveTools    bool
	noContent    bool
	noInspect    bool
	noCache      bool
	noHistory    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [image...]",
	Short: "Validate images (default command)",
	Long: `Validate images of the matrix. Each image is checked attribute by
attribute (path, inode, uid, gid, mtime, atime, ctime, crtime, mode, links,
size), then recovered file contents are verified against the manifest.

Failed checks do not stop the run; the exit status is non-zero when any
image fails or cannot be validated.`,
	Args: cobra.ArbitraryArgs,
	RunE: runVerify,
}

func init() {
	addVerifyFlags(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}

// addVerifyFlags registers the validation flags on cmd.
func addVerifyFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&customImages, "image", nil, "custom image file with an <image>.md5 manifest (repeatable)")
	cmd.Flags().BoolVar(&liveTools, "live", false, "run the forensic tools instead of reading captures")
	cmd.Flags().BoolVar(&noContent, "no-content", false, "skip the content check")
	cmd.Flags().BoolVar(&noInspect, "no-inspect", false, "skip the per-inode istat cross-check")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the digest cache")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in history")
}

// runVerify is the main validation command handler.
func runVerify(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := buildMatrix(cfg, args, customImages)
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

	open := image.OpenFunc(image.OpenCaptures)
	if liveTools {
		runner := capture.NewRunner(capture.WithTools(cfg.Tools), capture.WithLogger(logging.Get("capture")))
		if err := runner.Check(); err != nil {
			return fmt.Errorf("forensic tools unavailable: %w", err)
		}
		open = capture.OpenLive(runner)
	}

	plan := planWorkers(cfg.Workers)
	opts = append(opts, image.WithHashWorkers(plan.HashWorkers))

	// Setup context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printVerbose("Validating %d images: %v", len(m.Images), m.Names())
	startTime := time.Now()

	outcomes, runErr := image.Run(ctx, m, image.RunConfig{
		Workers: plan.ImageWorkers,
		Open:    open,
		OnDone: func(o *image.Outcome) {
			printVerbose("%s: pass=%t in %s", o.Descriptor.Name, o.Passed(), o.Duration)
			if err := o.Mismatch(); err != nil && o.Err == nil {
				printVerbose("%s: %v", o.Descriptor.Name, err)
			}
		},
	}, opts...)
	elapsed := time.Since(startTime)

	result := output.NewResult(outcomes, elapsed)
	result.Interrupted = runErr != nil

	if cfg.History.Enabled && !noHistory && len(outcomes) > 0 {
		if id, err := recordRun(cfg, outcomes, elapsed); err != nil {
			printVerbose("Failed to record history: %v", err)
		} else {
			result.RunID = id
		}
	}

	if err := writeResult(os.Stdout, formatter, result); err != nil {
		return err
	}
	if !result.Passed() {
		return errValidationFailed
	}
	return nil
}

// validateOptions builds the per-image options shared by verify and watch.
// The returned function closes the digest cache, if one was opened.
func validateOptions(cfg *config.Config) ([]image.Option, func(), error) {
	attrs, err := parseAttributes(cfg.Attributes)
	if err != nil {
		return nil, nil, err
	}

	opts := []image.Option{image.WithAttributes(attrs...)}
	if noContent {
		opts = append(opts, image.WithoutContent())
	}
	if noInspect {
		opts = append(opts, image.WithoutInspection())
	}

	closeCache := func() {}
	if cfg.Cache.Enabled && !noCache && !noContent {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			// Another fsverify process may hold the cache lock.
			printVerbose("Digest cache unavailable, hashing everything: %v", err)
		} else {
			opts = append(opts, image.WithCache(c))
			closeCache = func() { _ = c.Close() }
		}
	}
	return opts, closeCache, nil
}

// recordRun persists the run and returns its history ID.
func recordRun(cfg *config.Config, outcomes []*image.Outcome, elapsed time.Duration) (string, error) {
	h, err := history.New(cfg.HistoryPath())
	if err != nil {
		return "", err
	}
	entry, err := h.Log(outcomes, elapsed)
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}
