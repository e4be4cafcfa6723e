// Package record provides the value types shared by the parsers, the
// comparator and the content verifier: one Record per filesystem entry as
// seen by one data source, and one ManifestEntry per expected file digest.
package record

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicatePath indicates that a collection holds two records for the same path.
var ErrDuplicatePath = errors.New("duplicate path")

// Record is the metadata of one filesystem entry as reported by one source.
// Records are built once from captured tool output and never mutated.
type Record struct {
	// Path is relative to the filesystem root, slash-separated, without a
	// leading slash. Symlinks carry their own name, never their target.
	Path string `json:"path" yaml:"path"`

	Inode uint64 `json:"inode" yaml:"inode"`
	UID   uint64 `json:"uid" yaml:"uid"`
	GID   uint64 `json:"gid" yaml:"gid"`

	// Timestamps are seconds since the epoch. Crtime is zero when the
	// source cannot report a birth time.
	Mtime  int64 `json:"mtime" yaml:"mtime"`
	Atime  int64 `json:"atime" yaml:"atime"`
	Ctime  int64 `json:"ctime" yaml:"ctime"`
	Crtime int64 `json:"crtime" yaml:"crtime"`

	// Mode is kept in the radix the source printed it in. Both TSK and
	// stat's %a print octal digits, so equal permissions compare equal.
	Mode Field `json:"mode" yaml:"mode"`

	Links uint64 `json:"links" yaml:"links"`

	// Size is a Field so that a non-numeric value survives into the diff.
	Size Field `json:"size" yaml:"size"`
}

// WithSize returns a copy of r with its size replaced.
func (r Record) WithSize(size Field) Record {
	r.Size = size
	return r
}

// Records is an immutable collection of records from one source.
type Records []Record

// Validate checks that every path occurs only once.
func (rs Records) Validate() error {
	seen := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if _, ok := seen[r.Path]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, r.Path)
		}
		seen[r.Path] = struct{}{}
	}
	return nil
}

// Filter returns the records for which keep reports true.
func (rs Records) Filter(keep func(Record) bool) Records {
	out := make(Records, 0, len(rs))
	for _, r := range rs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Map returns a new collection with fn applied to every record.
func (rs Records) Map(fn func(Record) Record) Records {
	out := make(Records, len(rs))
	for i, r := range rs {
		out[i] = fn(r)
	}
	return out
}

// ManifestEntry describes the expected content of one file.
type ManifestEntry struct {
	// Path is relative to the filesystem root.
	Path string `json:"path" yaml:"path"`

	// Hash is the hex-encoded MD5 digest of the file content.
	Hash string `json:"hash" yaml:"hash"`
}

// String renders the entry the way md5sum does.
func (e ManifestEntry) String() string {
	return e.Hash + "  " + e.Path
}

// SortManifest sorts entries by path, then by hash.
func SortManifest(entries []ManifestEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Hash < entries[j].Hash
	})
}
