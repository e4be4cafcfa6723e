package normalize

import (
	"strings"
)

const (
	istatLine  = 2
	istatField = 2
)

// ParseIstat extracts the inode number istat reports for an inode: the third
// space-separated field of the third line. Output from a failed istat run
// yields a *ParseError rather than a zero inode.
func ParseIstat(raw []byte) (uint64, error) {
	lines := splitLines(raw)
	if len(lines) <= istatLine {
		return 0, &ParseError{Source: SourceIstat, Line: len(lines), Field: -1, Text: string(raw), Err: errTooFewFields}
	}
	fields := strings.Split(lines[istatLine], " ")
	if len(fields) <= istatField {
		return 0, &ParseError{Source: SourceIstat, Line: istatLine + 1, Field: -1, Text: lines[istatLine], Err: errTooFewFields}
	}
	return parseUint(SourceIstat, istatLine+1, istatField, fields[istatField])
}
