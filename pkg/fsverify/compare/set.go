package compare

import (
	"sort"
	"strings"

	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// Pair is one element of an attribute projection.
type Pair struct {
	Path  string `json:"path" yaml:"path"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// String renders the pair as "(path, value)", or the bare path for the
// structural projection.
func (p Pair) String() string {
	if p.Value == "" {
		return p.Path
	}
	return "(" + p.Path + ", " + p.Value + ")"
}

// Set is a projection of records onto one attribute.
type Set map[Pair]struct{}

// Project builds the set of (path, value) pairs for attr. The path
// attribute projects paths with empty values.
func Project(rs record.Records, attr record.Attribute) Set {
	s := make(Set, len(rs))
	for _, r := range rs {
		s[Pair{Path: r.Path, Value: attr.Value(r)}] = struct{}{}
	}
	return s
}

// Minus returns the pairs of s absent from other, sorted by path then value.
func (s Set) Minus(other Set) []Pair {
	var out []Pair
	for p := range s {
		if _, ok := other[p]; !ok {
			out = append(out, p)
		}
	}
	sortPairs(out)
	return out
}

func sortPairs(ps []Pair) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Path != ps[j].Path {
			return ps[i].Path < ps[j].Path
		}
		return ps[i].Value < ps[j].Value
	})
}

func formatPairs(ps []Pair) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
