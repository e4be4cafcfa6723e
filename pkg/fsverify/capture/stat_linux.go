//go:build linux

package capture

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

// lstat uses statx so that the birth time is available where the
// filesystem records one.
func lstat(path string) (statInfo, error) {
	var stx unix.Statx_t
	mask := unix.STATX_BASIC_STATS | unix.STATX_BTIME
	if err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, mask, &stx); err != nil {
		return statInfo{}, &fs.PathError{Op: "statx", Path: path, Err: err}
	}

	info := statInfo{
		Inode: stx.Ino,
		UID:   uint64(stx.Uid),
		GID:   uint64(stx.Gid),
		Mtime: stx.Mtime.Sec,
		Atime: stx.Atime.Sec,
		Ctime: stx.Ctime.Sec,
		Mode:  uint32(stx.Mode),
		Links: uint64(stx.Nlink),
		Size:  int64(stx.Size),
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		info.Btime = stx.Btime.Sec
	}
	return info, nil
}
