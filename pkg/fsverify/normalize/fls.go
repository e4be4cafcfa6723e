package normalize

import (
	"strings"

	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// Field indexes of an fls -m body line:
// md5|name|inode|mode|uid|gid|size|atime|mtime|ctime|crtime.
const (
	flsName  = 1
	flsInode = 2
	flsMode  = 3
)

// symlinkArrow separates a symlink's name from its target in fls output.
const symlinkArrow = " -> "

// FileEntry is one path of a forensic file listing and its inode.
type FileEntry struct {
	Path  string `json:"path" yaml:"path"`
	Inode uint64 `json:"inode" yaml:"inode"`
}

// ParseFileListing parses the output of fls -r -m /.
//
// The name field carries a one-character prefix glued to the path, which is
// removed. Lines with fewer than two fields are not entries and are skipped,
// as are entries whose final name starts with '$' (TSK metadata files, at
// any depth, as the tree hasher skips them) and paths the policy excludes. Symlink names are cut before the " -> target" suffix.
// A path that itself contains '|' cannot be represented in this format.
func ParseFileListing(raw []byte, policy Policy) ([]FileEntry, error) {
	var entries []FileEntry
	seen := make(map[string]struct{})

	for i, line := range splitLines(raw) {
		lineNo := i + 1
		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}

		name := fields[flsName]
		if len(name) < 2 {
			return nil, &ParseError{Source: SourceFileListing, Line: lineNo, Field: flsName, Text: name, Err: errEmptyName}
		}
		if name[1] == '$' {
			continue
		}
		if len(fields) <= flsMode || fields[flsMode] == "" {
			return nil, &ParseError{Source: SourceFileListing, Line: lineNo, Field: -1, Text: line, Err: errTooFewFields}
		}

		path := name[1:]
		if fields[flsMode][0] == 'l' {
			if end := strings.Index(path, symlinkArrow); end >= 0 {
				path = path[:end]
			}
		}

		if isMetadataName(path) || policy.Excluded(path) {
			continue
		}

		inode, err := parseUint(SourceFileListing, lineNo, flsInode, fields[flsInode])
		if err != nil {
			return nil, err
		}

		if _, dup := seen[path]; dup {
			return nil, &ParseError{
				Source: SourceFileListing, Line: lineNo, Field: flsName, Text: path,
				Err: record.ErrDuplicatePath,
			}
		}
		seen[path] = struct{}{}

		entries = append(entries, FileEntry{Path: path, Inode: inode})
	}

	return entries, nil
}

// isMetadataName reports whether the last component of path is a TSK
// metadata name.
func isMetadataName(path string) bool {
	return strings.HasPrefix(path[strings.LastIndexByte(path, '/')+1:], "$")
}
