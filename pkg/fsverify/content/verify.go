package content

import (
	"sort"

	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// Result is the verdict of a content verification.
type Result struct {
	Pass bool `json:"pass" yaml:"pass"`

	// Missing holds manifest entries with no identical file in the tree.
	Missing []record.ManifestEntry `json:"missing,omitempty" yaml:"missing,omitempty"`

	// Unexpected holds tree entries with no identical manifest entry.
	Unexpected []record.ManifestEntry `json:"unexpected,omitempty" yaml:"unexpected,omitempty"`
}

// Changed returns the paths present on both sides with different digests.
func (r Result) Changed() []string {
	missing := make(map[string]struct{}, len(r.Missing))
	for _, e := range r.Missing {
		missing[e.Path] = struct{}{}
	}
	var changed []string
	for _, e := range r.Unexpected {
		if _, ok := missing[e.Path]; ok {
			changed = append(changed, e.Path)
		}
	}
	sort.Strings(changed)
	return changed
}

// Verify compares the expected manifest with the digests of a tree as sets
// of (path, hash) pairs. A file whose content differs appears in both
// Missing and Unexpected.
func Verify(expected, actual []record.ManifestEntry) Result {
	want := make(map[record.ManifestEntry]struct{}, len(expected))
	for _, e := range expected {
		want[e] = struct{}{}
	}
	got := make(map[record.ManifestEntry]struct{}, len(actual))
	for _, e := range actual {
		got[e] = struct{}{}
	}

	var res Result
	for e := range want {
		if _, ok := got[e]; !ok {
			res.Missing = append(res.Missing, e)
		}
	}
	for e := range got {
		if _, ok := want[e]; !ok {
			res.Unexpected = append(res.Unexpected, e)
		}
	}
	record.SortManifest(res.Missing)
	record.SortManifest(res.Unexpected)
	res.Pass = len(res.Missing) == 0 && len(res.Unexpected) == 0
	return res
}
