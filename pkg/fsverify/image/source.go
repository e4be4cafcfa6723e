package image

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jamesainslie/fsverify/pkg/fsverify/compare"
)

// Capture directory layout.
const (
	FileListingFile  = "fls.txt"
	InodeListingFile = "ils.txt"
	StatListingFile  = "stat.txt"
	IstatDir         = "istat"
	RecoveredDir     = "recovered"
)

// IstatFile returns the path of the istat capture for inode below dir.
func IstatFile(dir string, inode uint64) string {
	return filepath.Join(dir, IstatDir, strconv.FormatUint(inode, 10)+".txt")
}

// Source supplies the raw tool output for one image.
type Source interface {
	// FileListing returns `fls -r -m /` output.
	FileListing(ctx context.Context) ([]byte, error)

	// InodeListing returns `ils -a` output.
	InodeListing(ctx context.Context) ([]byte, error)

	// StatListing returns one stat line per entry below the mount point.
	StatListing(ctx context.Context) ([]byte, error)

	// Inspector returns the istat source, or nil when none is available.
	Inspector() compare.InodeInspector
}

// DirSource reads tool output previously captured into a directory.
type DirSource struct {
	Dir string
}

var _ Source = DirSource{}

// FileListing reads fls.txt.
func (s DirSource) FileListing(ctx context.Context) ([]byte, error) {
	return s.read(ctx, FileListingFile)
}

// InodeListing reads ils.txt.
func (s DirSource) InodeListing(ctx context.Context) ([]byte, error) {
	return s.read(ctx, InodeListingFile)
}

// StatListing reads stat.txt.
func (s DirSource) StatListing(ctx context.Context) ([]byte, error) {
	return s.read(ctx, StatListingFile)
}

// Inspector serves istat/<inode>.txt. It is nil when the capture has no
// istat directory.
func (s DirSource) Inspector() compare.InodeInspector {
	info, err := os.Stat(filepath.Join(s.Dir, IstatDir))
	if err != nil || !info.IsDir() {
		return nil
	}
	return compare.InspectorFunc(func(ctx context.Context, inode uint64) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(IstatFile(s.Dir, inode))
		if err != nil {
			return nil, fmt.Errorf("reading istat capture: %w", err)
		}
		return data, nil
	})
}

func (s DirSource) read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingCapture, filepath.Join(s.Dir, name))
		}
		return nil, fmt.Errorf("reading capture: %w", err)
	}
	return data, nil
}

// ErrMissingCapture indicates a capture directory without one of the
// listing files.
var ErrMissingCapture = errors.New("capture file missing")
