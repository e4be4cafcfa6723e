package normalize

import (
	"strconv"
	"strings"

	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

var logger = logging.Get("normalize")

// Field indexes of an ils -a line:
// st_ino|st_alloc|st_uid|st_gid|st_mtime|st_atime|st_ctime|st_crtime|st_mode|st_nlink|st_size.
const (
	ilsInode  = 0
	ilsUID    = 2
	ilsGID    = 3
	ilsMtime  = 4
	ilsAtime  = 5
	ilsCtime  = 6
	ilsCrtime = 7
	ilsMode   = 8
	ilsLinks  = 9
	ilsSize   = 10

	ilsFields = 11
)

// InodeEntry holds every field of one inode listing line.
type InodeEntry struct {
	// Line is the 1-based line the entry came from.
	Line int
	// Fields holds all pipe fields; Fields[0] is the inode number.
	Fields []record.Field
}

// InodeTable indexes an inode listing by inode number.
type InodeTable struct {
	Entries map[uint64]InodeEntry

	// Duplicates counts lines that replaced an earlier line for the same inode.
	Duplicates int
}

// Lookup returns the entry for inode.
func (t InodeTable) Lookup(inode uint64) (InodeEntry, bool) {
	e, ok := t.Entries[inode]
	return e, ok
}

// Len returns the number of inodes in the table.
func (t InodeTable) Len() int {
	return len(t.Entries)
}

// ParseInodeListing parses the output of ils -a.
//
// Lines whose first field is not an inode number (headers) are skipped, as
// are inode 0 and entries whose mode field is 0. When an inode occurs more
// than once, the last line wins; each replacement is counted and logged.
func ParseInodeListing(raw []byte) (InodeTable, error) {
	table := InodeTable{Entries: make(map[uint64]InodeEntry)}

	for i, line := range splitLines(raw) {
		lineNo := i + 1
		fields := strings.Split(line, "|")
		if !isDigits(fields[ilsInode]) {
			continue
		}
		inode, err := strconv.ParseUint(fields[ilsInode], 10, 64)
		if err != nil {
			return InodeTable{}, &ParseError{Source: SourceInodeListing, Line: lineNo, Field: ilsInode, Text: fields[ilsInode], Err: errNotInteger}
		}
		if inode == 0 {
			continue
		}
		if len(fields) < ilsFields {
			return InodeTable{}, &ParseError{Source: SourceInodeListing, Line: lineNo, Field: -1, Text: line, Err: errTooFewFields}
		}
		if fields[ilsMode] == "0" {
			continue
		}

		parsed := make([]record.Field, len(fields))
		for j, f := range fields {
			parsed[j] = record.ParseField(f)
		}

		if prev, ok := table.Entries[inode]; ok {
			table.Duplicates++
			logger.Warn("duplicate inode in inode listing, keeping last",
				"inode", inode, "first_line", prev.Line, "line", lineNo)
		}
		table.Entries[inode] = InodeEntry{Line: lineNo, Fields: parsed}
	}

	return table, nil
}
