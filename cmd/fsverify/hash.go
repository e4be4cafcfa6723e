package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/fsverify/pkg/fsverify/cache"
	"github.com/jamesainslie/fsverify/pkg/fsverify/content"
)

var (
	hashOut     string
	hashNoCache bool
)

var hashCmd = &cobra.Command{
	Use:   "hash <dir>",
	Short: "Write an md5 manifest of a directory tree",
	Long: `Digest every regular file below dir and print an md5sum-compatible
manifest ("<hash>  <path>", sorted by path). Names starting with '$' and
paths excluded by the normalization policy are skipped.

Use it to produce the manifest of the files written into an image, or to
inspect what tsk_recover extracted.`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

func init() {
	hashCmd.Flags().StringVarP(&hashOut, "file", "f", "", "write the manifest to a file instead of stdout")
	hashCmd.Flags().BoolVar(&hashNoCache, "no-cache", false, "bypass the digest cache")
	rootCmd.AddCommand(hashCmd)
}

// runHash hashes a tree and writes its manifest.
func runHash(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	plan := planWorkers(cfg.Workers)
	opts := []content.Option{content.WithWorkers(plan.HashWorkers)}
	if cfg.Cache.Enabled && !hashNoCache {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			printVerbose("Digest cache unavailable, hashing everything: %v", err)
		} else {
			defer c.Close()
			opts = append(opts, content.WithCache(c))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, err := content.HashTree(ctx, root, cfg.Policy, opts...)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if hashOut != "" {
		f, err := os.Create(hashOut)
		if err != nil {
			return fmt.Errorf("failed to create manifest: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := content.WriteManifest(w, entries); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	printVerbose("Hashed %s files below %s", humanize.Comma(int64(len(entries))), root)
	return nil
}
