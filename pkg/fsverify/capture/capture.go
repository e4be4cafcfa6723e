package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/fsverify/pkg/fsverify/compare"
	"github.com/jamesainslie/fsverify/pkg/fsverify/image"
	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
)

var logger = logging.Get("capture")

// ErrCaptureExists indicates a capture or recovery directory that already
// holds output from an earlier run.
var ErrCaptureExists = errors.New("capture directory already exists")

type options struct {
	istat   bool
	recover bool
	replace bool
	workers int
}

// Option configures WriteDir.
type Option func(*options)

// WithoutIstat skips the per-inode istat captures.
func WithoutIstat() Option {
	return func(o *options) {
		o.istat = false
	}
}

// WithoutRecover skips file recovery.
func WithoutRecover() Option {
	return func(o *options) {
		o.recover = false
	}
}

// WithReplace discards existing capture output instead of failing.
func WithReplace() Option {
	return func(o *options) {
		o.replace = true
	}
}

// WithWorkers sets the number of concurrent istat runs.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Summary describes a completed capture.
type Summary struct {
	Dir     string
	Entries int
	Inodes  int

	// IstatFailures counts istat runs that exited unsuccessfully. Their
	// output is kept so the inode check reports them as mismatches.
	IstatFailures int

	Recovered bool
}

// WriteDir captures every listing of desc into desc.Captures using the
// layout image.DirSource reads. The forensic tools read desc.Image and the
// stat listing walks desc.Mount, which must already be mounted.
func WriteDir(ctx context.Context, r *Runner, desc image.Descriptor, opts ...Option) (*Summary, error) {
	o := &options{istat: true, recover: true, workers: 4}
	for _, opt := range opts {
		opt(o)
	}
	log := logger.With("image", desc.Name)

	dir := desc.Captures
	if err := prepare(ctx, dir, o.replace); err != nil {
		return nil, err
	}
	if o.recover && desc.Recovered != "" {
		if err := prepare(ctx, desc.Recovered, o.replace); err != nil {
			return nil, err
		}
	}

	fls, err := r.FileListing(ctx, desc.Image)
	if err != nil {
		return nil, err
	}
	if err := writeFile(dir, image.FileListingFile, fls); err != nil {
		return nil, err
	}

	ils, err := r.InodeListing(ctx, desc.Image)
	if err != nil {
		return nil, err
	}
	if err := writeFile(dir, image.InodeListingFile, ils); err != nil {
		return nil, err
	}

	var stat bytes.Buffer
	if err := StatTree(ctx, desc.Mount, &stat); err != nil {
		return nil, err
	}
	if err := writeFile(dir, image.StatListingFile, stat.Bytes()); err != nil {
		return nil, err
	}

	entries, err := normalize.ParseFileListing(fls, desc.Policy)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Dir: dir, Entries: len(entries)}

	if o.istat {
		inodes := uniqueInodes(entries)
		summary.Inodes = len(inodes)
		failures, err := writeIstat(ctx, r, desc.Image, dir, inodes, o.workers)
		if err != nil {
			return nil, err
		}
		summary.IstatFailures = failures
	}

	if o.recover && desc.Recovered != "" {
		if err := r.Recover(ctx, desc.Image, desc.Recovered); err != nil {
			return nil, err
		}
		summary.Recovered = true
	}

	log.Info("capture written", "dir", dir, "entries", summary.Entries,
		"inodes", summary.Inodes, "istat_failures", summary.IstatFailures)
	return summary, nil
}

// prepare makes dir an empty directory, discarding earlier output when
// replace is set.
func prepare(ctx context.Context, dir string, replace bool) error {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("preparing %s: %w", dir, err)
	case len(entries) > 0 && !replace:
		return fmt.Errorf("%w: %s", ErrCaptureExists, dir)
	case len(entries) > 0:
		if _, err := Discard(ctx, dir); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("preparing %s: %w", dir, err)
	}
	return nil
}

func writeFile(dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("writing capture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing capture: %w", err)
	}
	return nil
}

func uniqueInodes(entries []normalize.FileEntry) []uint64 {
	seen := make(map[uint64]struct{}, len(entries))
	inodes := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Inode]; ok {
			continue
		}
		seen[e.Inode] = struct{}{}
		inodes = append(inodes, e.Inode)
	}
	return inodes
}

// writeIstat captures istat output per inode. A failed run still has its
// output written; only cancellation and write errors stop the capture.
func writeIstat(ctx context.Context, r *Runner, img, dir string, inodes []uint64, workers int) (int, error) {
	if err := os.MkdirAll(filepath.Join(dir, image.IstatDir), 0o755); err != nil {
		return 0, fmt.Errorf("writing capture: %w", err)
	}

	var (
		mu       sync.Mutex
		failures int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, inode := range inodes {
		g.Go(func() error {
			out, err := r.Istat(gctx, img, inode)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.Debug("istat failed", "inode", inode, "error", err)
				mu.Lock()
				failures++
				mu.Unlock()
			}
			return os.WriteFile(image.IstatFile(dir, inode), out, 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return failures, fmt.Errorf("istat capture: %w", err)
	}
	return failures, nil
}

// Live is an image.Source that runs the tools on demand instead of reading
// a capture directory.
type Live struct {
	runner *Runner
	desc   image.Descriptor
}

var _ image.Source = (*Live)(nil)

// NewLive returns a live source for desc.
func NewLive(r *Runner, desc image.Descriptor) *Live {
	return &Live{runner: r, desc: desc}
}

// OpenLive returns an image.OpenFunc producing live sources.
func OpenLive(r *Runner) image.OpenFunc {
	return func(_ context.Context, desc image.Descriptor) (image.Source, error) {
		return NewLive(r, desc), nil
	}
}

// FileListing runs fls on the image.
func (l *Live) FileListing(ctx context.Context) ([]byte, error) {
	return l.runner.FileListing(ctx, l.desc.Image)
}

// InodeListing runs ils on the image.
func (l *Live) InodeListing(ctx context.Context) ([]byte, error) {
	return l.runner.InodeListing(ctx, l.desc.Image)
}

// StatListing walks the mount point.
func (l *Live) StatListing(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := StatTree(ctx, l.desc.Mount, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Inspector runs istat per inode.
func (l *Live) Inspector() compare.InodeInspector {
	return compare.InspectorFunc(func(ctx context.Context, inode uint64) ([]byte, error) {
		return l.runner.Istat(ctx, l.desc.Image, inode)
	})
}
