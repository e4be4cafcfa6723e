package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "fsverify [image...]",
		Short: "Cross-validate forensic and OS views of filesystem images",
		Long: `fsverify checks that a forensic toolkit reports the same filesystem as the
operating system does. For every image it compares the Sleuth Kit listings
(fls, ils, istat) with a stat listing of the mounted image attribute by
attribute, then verifies recovered file contents against an md5 manifest.

By default fsverify validates every image of the built-in catalog from its
capture directory. Name images to validate a subset.

Examples:
  fsverify                          # Validate the catalog from captures
  fsverify btrfs_standard btrfs_lzo # Validate selected images
  fsverify --image ./custom.img     # Validate a custom image
  fsverify --live btrfs_zlib        # Run the tools instead of reading captures
  fsverify -o json                  # JSON report
  fsverify capture btrfs_standard   # Capture tool output for an image
  fsverify history                  # View earlier runs`,
		Args:              cobra.ArbitraryArgs,
		RunE:              runVerify,
		PersistentPreRunE: initializeLogging,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/fsverify/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (pretty, plain, json, jsonl, yaml, tsv, csv, markdown, template)")
	rootCmd.PersistentFlags().String("template", "", "template string for -o template")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "images validated in parallel (0=auto)")
	rootCmd.PersistentFlags().String("mount", "", "mount point of the image under test")
	rootCmd.PersistentFlags().String("image-dir", "", "directory holding images and manifests")
	rootCmd.PersistentFlags().String("capture-dir", "", "directory holding capture directories")
	rootCmd.PersistentFlags().String("recover-dir", "", "directory receiving recovered files")
	rootCmd.PersistentFlags().String("matrix", "", "YAML file listing the images to validate")
	rootCmd.PersistentFlags().StringSliceP("attributes", "a", nil, "metadata checks to run (default: all)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("template", rootCmd.PersistentFlags().Lookup("template"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("mount_path", rootCmd.PersistentFlags().Lookup("mount"))
	_ = viper.BindPFlag("image_dir", rootCmd.PersistentFlags().Lookup("image-dir"))
	_ = viper.BindPFlag("capture_dir", rootCmd.PersistentFlags().Lookup("capture-dir"))
	_ = viper.BindPFlag("recover_dir", rootCmd.PersistentFlags().Lookup("recover-dir"))
	_ = viper.BindPFlag("matrix", rootCmd.PersistentFlags().Lookup("matrix"))
	_ = viper.BindPFlag("attributes", rootCmd.PersistentFlags().Lookup("attributes"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	addVerifyFlags(rootCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message to stderr if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
