// Package normalize turns captured forensic and OS tool output into records
// and applies the normalization policy that makes the two views comparable.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// ConversionBackupMarker is the directory an in-place ext to btrfs
// conversion leaves behind.
const ConversionBackupMarker = "ext2_saved"

// ErrInvalidPattern indicates that an ignore pattern does not compile.
var ErrInvalidPattern = errors.New("invalid ignore pattern")

// Policy controls which entries take part in a comparison and how
// pseudo-entry sizes are treated. The zero value disables every rule.
type Policy struct {
	// ExcludeConversionBackup drops every path containing ConversionBackupMarker.
	ExcludeConversionBackup bool `json:"exclude_conversion_backup" yaml:"exclude_conversion_backup" mapstructure:"exclude_conversion_backup"`

	// CollapseSnapshotDuplicates drops paths that live inside a snapshot of
	// a subvolume, since the snapshot mirrors the subvolume's content.
	CollapseSnapshotDuplicates bool `json:"collapse_snapshot_duplicates" yaml:"collapse_snapshot_duplicates" mapstructure:"collapse_snapshot_duplicates"`

	// ZeroPseudoEntrySize reports size 0 for directory, subvolume and
	// snapshot entries.
	ZeroPseudoEntrySize bool `json:"zero_pseudo_entry_size" yaml:"zero_pseudo_entry_size" mapstructure:"zero_pseudo_entry_size"`

	// Ignore contains extra glob patterns matched against relative paths.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty" mapstructure:"ignore"`
}

// DefaultPolicy returns a policy with all three switches enabled.
func DefaultPolicy() Policy {
	return Policy{
		ExcludeConversionBackup:    true,
		CollapseSnapshotDuplicates: true,
		ZeroPseudoEntrySize:        true,
	}
}

// Validate checks that every ignore pattern compiles.
func (p Policy) Validate() error {
	for _, pattern := range p.Ignore {
		if _, err := compilePattern(pattern); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
		}
	}
	return nil
}

// Excluded reports whether path must not reach a comparison.
func (p Policy) Excluded(path string) bool {
	if p.excludedByMarker(path) {
		return true
	}
	return matchesAnyPattern(path, p.Ignore)
}

// excludedByMarker applies the two substring rules. They work on raw and
// relative paths alike.
func (p Policy) excludedByMarker(path string) bool {
	if p.ExcludeConversionBackup && strings.Contains(path, ConversionBackupMarker) {
		return true
	}
	return p.CollapseSnapshotDuplicates && IsSnapshotDuplicate(path)
}

// IsSnapshotDuplicate reports whether path names both a snapshot and a subvolume.
func IsSnapshotDuplicate(path string) bool {
	return strings.Contains(path, "snapshot") && strings.Contains(path, "subvolume")
}

// PseudoEntry reports whether the last component of path marks a directory,
// subvolume or snapshot entry.
func (p Policy) PseudoEntry(path string) bool {
	last := path[strings.LastIndexByte(path, '/')+1:]
	return strings.Contains(last, "directory") ||
		strings.Contains(last, "subvolume") ||
		strings.Contains(last, "snapshot")
}

// NormalizeSize returns r with size 0 if it is a pseudo entry and the
// policy zeroes those. Other records are returned unchanged.
func (p Policy) NormalizeSize(r record.Record) record.Record {
	if p.ZeroPseudoEntrySize && p.PseudoEntry(r.Path) {
		return r.WithSize(record.Int(0))
	}
	return r
}

// Apply filters excluded records and normalizes sizes. Applying the same
// policy twice yields the same collection.
func (p Policy) Apply(rs record.Records) record.Records {
	return rs.Filter(func(r record.Record) bool {
		return !p.Excluded(r.Path)
	}).Map(p.NormalizeSize)
}

// compiledPatterns memoizes compiled ignore patterns by pattern text.
// Patterns come from configuration, so the set stays small.
var compiledPatterns sync.Map

func compilePattern(pattern string) (glob.Glob, error) {
	if g, ok := compiledPatterns.Load(pattern); ok {
		return g.(glob.Glob), nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	actual, _ := compiledPatterns.LoadOrStore(pattern, g)
	return actual.(glob.Glob), nil
}

// matchesAnyPattern returns true if the path matches any of the glob patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	for _, pattern := range patterns {
		g, err := compilePattern(pattern)
		if err != nil {
			continue // Validate reports these
		}
		if g.Match(path) {
			return true
		}
	}
	return false
}
