//go:build darwin || freebsd

package capture

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

func lstat(path string) (statInfo, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return statInfo{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}

	return statInfo{
		Inode: uint64(st.Ino),
		UID:   uint64(st.Uid),
		GID:   uint64(st.Gid),
		Mtime: int64(st.Mtim.Sec),
		Atime: int64(st.Atim.Sec),
		Ctime: int64(st.Ctim.Sec),
		Btime: int64(st.Btim.Sec),
		Mode:  uint32(st.Mode),
		Links: uint64(st.Nlink),
		Size:  st.Size,
	}, nil
}
