package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// discardTimeout bounds each trash command.
const discardTimeout = 30 * time.Second

// Discard moves an old capture directory to the desktop trash when a trash
// command is available and deletes it otherwise. It reports whether the
// directory went to the trash.
func Discard(ctx context.Context, path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		return false, fmt.Errorf("cannot discard %q: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("cannot resolve %q: %w", path, err)
	}

	for _, args := range trashCommands(abs) {
		bin, err := exec.LookPath(args[0])
		if err != nil {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, discardTimeout)
		err = exec.CommandContext(cctx, bin, args[1:]...).Run()
		cancel()
		if err == nil {
			logger.Debug("capture moved to trash", "path", abs, "tool", args[0])
			return true, nil
		}
		logger.Debug("trash command failed", "tool", args[0], "error", err)
	}

	if err := os.RemoveAll(abs); err != nil {
		return false, fmt.Errorf("failed to delete %q: %w", abs, err)
	}
	return false, nil
}

// trashCommands lists the trash invocations to try, in order.
func trashCommands(path string) [][]string {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, path)
		return [][]string{{"osascript", "-e", script}}
	case "linux":
		return [][]string{{"gio", "trash", path}, {"trash-put", path}}
	default:
		return nil
	}
}
