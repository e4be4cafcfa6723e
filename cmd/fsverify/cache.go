package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/fsverify/pkg/fsverify/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the digest cache.

The cache stores the md5 digest of every hashed file together with its size
and modification time, so unchanged recovered files are not hashed again.
Cache data is stored in the XDG cache directory (typically ~/.cache/fsverify/digests).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Clear cached digests",
	Long:  `Removes cached digests for one hashed directory, or all of them.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [dir]",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, its size on disk and, for a directory, the number of cached digests.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheStats,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the cache directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println(cfg.CachePath())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// runCacheClear drops cached digests.
func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cachePath := cfg.CachePath()

	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		fmt.Println("Cache is already empty.")
		return nil
	}

	c, err := cache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()

	if len(args) == 1 {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		if err := c.Clear(root); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Printf("Cache cleared for %s.\n", root)
		return nil
	}

	if err := c.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Println("Cache cleared.")
	return nil
}

// runCacheStats prints cache size and, for a directory, its digest count.
func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cachePath := cfg.CachePath()

	info, err := os.Stat(cachePath)
	if os.IsNotExist(err) {
		fmt.Println("Cache: empty (no cache directory)")
		fmt.Printf("Cache location: %s\n", cachePath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat cache: %w", err)
	}

	var size int64
	var fileCount int
	err = filepath.Walk(cachePath, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
			fileCount++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to calculate cache size: %w", err)
	}

	fmt.Printf("Cache location: %s\n", cachePath)
	fmt.Printf("Cache size: %s\n", humanize.IBytes(uint64(size)))
	fmt.Printf("Cache files: %d\n", fileCount)
	fmt.Printf("Last modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))

	if len(args) == 1 {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		c, err := cache.Open(cachePath)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer c.Close()

		n, err := c.Count(root)
		if err != nil {
			return fmt.Errorf("failed to count digests: %w", err)
		}
		fmt.Printf("Digests for %s: %s\n", root, humanize.Comma(int64(n)))
	}

	return nil
}
