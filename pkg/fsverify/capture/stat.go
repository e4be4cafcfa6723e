package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// ErrUnsupported indicates a platform without a native stat lister.
var ErrUnsupported = errors.New("stat listing not supported on this platform")

// statInfo holds the fields of one stat listing line.
type statInfo struct {
	Inode uint64
	UID   uint64
	GID   uint64
	Mtime int64
	Atime int64
	Ctime int64

	// Btime is 0 when the filesystem does not report a birth time.
	Btime int64

	Mode  uint32
	Links uint64
	Size  int64
}

// line renders info the way `stat -c '%n|%i|a|%u|%g|%Y|%X|%Z|%W|%a|%h|%s'`
// prints it.
func (s statInfo) line(path string) string {
	var b strings.Builder
	b.WriteString(path)
	for _, f := range []string{
		strconv.FormatUint(s.Inode, 10),
		"a",
		strconv.FormatUint(s.UID, 10),
		strconv.FormatUint(s.GID, 10),
		strconv.FormatInt(s.Mtime, 10),
		strconv.FormatInt(s.Atime, 10),
		strconv.FormatInt(s.Ctime, 10),
		strconv.FormatInt(s.Btime, 10),
		strconv.FormatUint(uint64(s.Mode&0o7777), 8),
		strconv.FormatUint(s.Links, 10),
		strconv.FormatInt(s.Size, 10),
	} {
		b.WriteByte('|')
		b.WriteString(f)
	}
	return b.String()
}

// StatTree writes one stat listing line for every entry below mount, not
// including mount itself, sorted by path. Symlinks are not followed.
// Entries that vanish or cannot be read during the walk are skipped.
func StatTree(ctx context.Context, mount string, w io.Writer) error {
	mount = filepath.Clean(mount)
	info, err := os.Stat(mount)
	if err != nil {
		return fmt.Errorf("stat listing: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("stat listing: %s is not a directory", mount)
	}

	var (
		mu    sync.Mutex
		lines []string
	)

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, mount, func(path string, _ fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.Debug("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if path == mount {
			return nil
		}

		st, err := lstat(path)
		if errors.Is(err, ErrUnsupported) {
			return err
		}
		if err != nil {
			logger.Debug("skipping entry", "path", path, "error", err)
			return nil
		}

		line := st.line(path)
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("stat listing: %w", walkErr)
	}

	sort.Strings(lines)
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
