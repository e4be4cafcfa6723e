package normalize

import (
	"errors"
	"fmt"
)

// Sources named in parse errors.
const (
	SourceFileListing  = "fls"
	SourceInodeListing = "ils"
	SourceStatListing  = "stat"
	SourceIstat        = "istat"
)

var (
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("malformed tool output")

	// ErrJoin matches every *JoinError.
	ErrJoin = errors.New("inode missing from inode listing")
)

// ParseError reports tool output that does not follow its line format.
type ParseError struct {
	// Source is the tool whose output failed to parse.
	Source string
	// Line is 1-based.
	Line int
	// Field is the zero-based pipe field index, or -1 for the whole line.
	Field int
	// Text is the offending field or line.
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("%s line %d: %v: %q", e.Source, e.Line, e.Err, e.Text)
	}
	return fmt.Sprintf("%s line %d field %d: %v: %q", e.Source, e.Line, e.Field, e.Err, e.Text)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// JoinError reports a file listing entry whose inode has no inode listing entry.
type JoinError struct {
	Path  string
	Inode uint64
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("inode %d of %q missing from inode listing", e.Inode, e.Path)
}

// Is matches ErrJoin.
func (e *JoinError) Is(target error) bool { return target == ErrJoin }

var (
	errTooFewFields = errors.New("too few fields")
	errFieldCount   = errors.New("unexpected field count")
	errEmptyName    = errors.New("empty name")
	errNotInteger   = errors.New("not an integer")
	errOutsideRoot  = errors.New("path outside mount root")
)
