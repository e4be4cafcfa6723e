// Package capture collects the raw tool output the validation pass
// consumes: The Sleuth Kit listings of an image file and a stat listing of
// the same image mounted by the OS.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
)

// ErrToolMissing indicates that a required binary is not on PATH.
var ErrToolMissing = errors.New("tool not found")

// ToolError describes a tool run that exited unsuccessfully.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if line, _, _ := strings.Cut(strings.TrimSpace(e.Stderr), "\n"); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Tools names the binaries the runner executes.
type Tools struct {
	FLS     string `json:"fls" yaml:"fls" mapstructure:"fls"`
	ILS     string `json:"ils" yaml:"ils" mapstructure:"ils"`
	Istat   string `json:"istat" yaml:"istat" mapstructure:"istat"`
	Recover string `json:"recover" yaml:"recover" mapstructure:"recover"`
}

// DefaultTools returns the Sleuth Kit binary names.
func DefaultTools() Tools {
	return Tools{FLS: "fls", ILS: "ils", Istat: "istat", Recover: "tsk_recover"}
}

// withDefaults fills empty names from DefaultTools.
func (t Tools) withDefaults() Tools {
	d := DefaultTools()
	if t.FLS == "" {
		t.FLS = d.FLS
	}
	if t.ILS == "" {
		t.ILS = d.ILS
	}
	if t.Istat == "" {
		t.Istat = d.Istat
	}
	if t.Recover == "" {
		t.Recover = d.Recover
	}
	return t
}

// Runner executes forensic tools against image files.
type Runner struct {
	tools  Tools
	logger *logging.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTools overrides binary names. Empty names keep their default.
func WithTools(t Tools) RunnerOption {
	return func(r *Runner) {
		r.tools = t.withDefaults()
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner for the default tool names.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		tools:  DefaultTools(),
		logger: logging.Get("capture"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tools returns the binary names in use.
func (r *Runner) Tools() Tools {
	return r.tools
}

// Check reports every tool missing from PATH.
func (r *Runner) Check() error {
	var errs []error
	for _, name := range []string{r.tools.FLS, r.tools.ILS, r.tools.Istat, r.tools.Recover} {
		if _, err := exec.LookPath(name); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s", ErrToolMissing, name))
		}
	}
	return errors.Join(errs...)
}

// FileListing runs `fls -r -m / img`.
func (r *Runner) FileListing(ctx context.Context, img string) ([]byte, error) {
	return r.run(ctx, r.tools.FLS, "-r", "-m", "/", img)
}

// InodeListing runs `ils -a img`.
func (r *Runner) InodeListing(ctx context.Context, img string) ([]byte, error) {
	return r.run(ctx, r.tools.ILS, "-a", img)
}

// Istat runs `istat img inode`. On failure the captured output is returned
// along with the error.
func (r *Runner) Istat(ctx context.Context, img string, inode uint64) ([]byte, error) {
	return r.run(ctx, r.tools.Istat, img, strconv.FormatUint(inode, 10))
}

// Recover runs `tsk_recover -a img dir`, extracting every allocated file.
func (r *Runner) Recover(ctx context.Context, img, dir string) error {
	_, err := r.run(ctx, r.tools.Recover, "-a", img, dir)
	return err
}

// run executes a tool and returns its stdout. A failed run returns the
// output captured so far with a *ToolError.
func (r *Runner) run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running tool", "tool", tool, "args", args)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return stdout.Bytes(), &ToolError{Tool: tool, Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
