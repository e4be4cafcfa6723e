package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/fsverify/pkg/fsverify/config"
	"github.com/jamesainslie/fsverify/pkg/fsverify/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View validation history",
	Long: `View earlier validation runs.

Every run records the verdict of each image, the names of failed checks
and the run duration.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific run",
	Long:  `Display the per-image verdicts of a run. A unique ID prefix is accepted.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getHistory returns the run history at the configured directory.
func getHistory() (*history.History, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	h, err := history.New(cfg.HistoryPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return h, cfg, nil
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	h, _, err := getHistory()
	if err != nil {
		return err
	}

	entries, err := h.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'fsverify' to validate images.")
		return nil
	}

	fmt.Printf("\n%-36s  %-19s  %-6s  %-6s  %-6s  %-6s\n", "ID", "TIME", "IMAGES", "PASSED", "FAILED", "ERRORS")
	fmt.Println(strings.Repeat("-", 92))

	for _, entry := range entries {
		fmt.Printf("%-36s  %-19s  %-6d  %-6d  %-6d  %-6d\n",
			truncateString(entry.ID, 36),
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			entry.Summary.Images,
			entry.Summary.Passed,
			entry.Summary.Failed,
			entry.Summary.Aborted,
		)
	}

	fmt.Println(strings.Repeat("-", 92))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'fsverify history show <id>' for details on a specific run.")

	return nil
}

// runHistoryShow displays details of a specific run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	h, _, err := getHistory()
	if err != nil {
		return err
	}

	entry, err := h.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:        %s\n", entry.ID)
	fmt.Printf("Timestamp: %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Duration:  %s\n", entry.Summary.Duration.Round(10*time.Millisecond))
	fmt.Printf("Images:    %d (%d passed, %d failed, %d errors)\n",
		entry.Summary.Images, entry.Summary.Passed, entry.Summary.Failed, entry.Summary.Aborted)

	if len(entry.Images) > 0 {
		fmt.Println()
		fmt.Printf("%-20s  %-6s  %s\n", "IMAGE", "RESULT", "DETAIL")
		fmt.Println(strings.Repeat("-", 60))
		for _, img := range entry.Images {
			status, detail := "PASS", ""
			switch {
			case img.Error != "":
				status, detail = "ERROR", img.Error
			case !img.Pass:
				status, detail = "FAIL", strings.Join(img.Failed, ", ")
			}
			fmt.Printf("%-20s  %-6s  %s\n", img.Name, status, detail)
		}
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	h, cfg, err := getHistory()
	if err != nil {
		return err
	}

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := h.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
