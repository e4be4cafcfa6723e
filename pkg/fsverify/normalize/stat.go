package normalize

import (
	"path/filepath"
	"strings"

	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// Field indexes of a stat -c '%n|%i|a|%u|%g|%Y|%X|%Z|%W|%a|%h|%s' line.
const (
	statPath   = 0
	statInode  = 1
	statUID    = 3
	statGID    = 4
	statMtime  = 5
	statAtime  = 6
	statCtime  = 7
	statCrtime = 8
	statMode   = 9
	statLinks  = 10
	statSize   = 11

	statFields = 12
)

// ParseStatListing parses stat output into records with paths relative to
// mountRoot. An empty mountRoot only strips the leading slash.
//
// The policy's exclusion rules run on the raw path, minus the mount root,
// before anything else is parsed, so excluded lines may hold anything after
// the path. A mount root named like a snapshot or subvolume excludes nothing.
func ParseStatListing(raw []byte, mountRoot string, policy Policy) (record.Records, error) {
	var records record.Records
	seen := make(map[string]struct{})

	for i, line := range splitLines(raw) {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "|")

		if policy.excludedByMarker(trimMountRoot(fields[statPath], mountRoot)) {
			continue
		}
		if len(fields) != statFields {
			return nil, &ParseError{Source: SourceStatListing, Line: lineNo, Field: -1, Text: line, Err: errFieldCount}
		}

		path, err := relativePath(fields[statPath], mountRoot)
		if err != nil {
			return nil, &ParseError{Source: SourceStatListing, Line: lineNo, Field: statPath, Text: fields[statPath], Err: err}
		}
		if path == "." || policy.Excluded(path) {
			continue
		}

		rec, err := statRecord(lineNo, path, fields)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[path]; dup {
			return nil, &ParseError{Source: SourceStatListing, Line: lineNo, Field: statPath, Text: path, Err: record.ErrDuplicatePath}
		}
		seen[path] = struct{}{}
		records = append(records, rec)
	}

	return records, nil
}

func statRecord(lineNo int, path string, fields []string) (record.Record, error) {
	rec := record.Record{
		Path: path,
		Mode: record.ParseField(fields[statMode]),
		Size: record.ParseField(fields[statSize]),
	}

	var err error
	uints := []struct {
		dst   *uint64
		index int
	}{
		{&rec.Inode, statInode},
		{&rec.UID, statUID},
		{&rec.GID, statGID},
		{&rec.Links, statLinks},
	}
	for _, u := range uints {
		if *u.dst, err = parseUint(SourceStatListing, lineNo, u.index, fields[u.index]); err != nil {
			return record.Record{}, err
		}
	}

	// Older stat versions print '-' for an unknown birth time.
	if fields[statCrtime] == "-" {
		fields[statCrtime] = "0"
	}
	ints := []struct {
		dst   *int64
		index int
	}{
		{&rec.Mtime, statMtime},
		{&rec.Atime, statAtime},
		{&rec.Ctime, statCtime},
		{&rec.Crtime, statCrtime},
	}
	for _, n := range ints {
		if *n.dst, err = parseInt(SourceStatListing, lineNo, n.index, fields[n.index]); err != nil {
			return record.Record{}, err
		}
	}

	return rec, nil
}

// trimMountRoot strips mountRoot from path without validating either.
func trimMountRoot(path, mountRoot string) string {
	root := strings.TrimSuffix(filepath.ToSlash(mountRoot), "/")
	if root == "" {
		return path
	}
	if rest, ok := strings.CutPrefix(path, root+"/"); ok {
		return rest
	}
	return path
}

func relativePath(path, mountRoot string) (string, error) {
	if mountRoot == "" {
		return strings.TrimPrefix(path, "/"), nil
	}
	rel, err := filepath.Rel(mountRoot, path)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errOutsideRoot
	}
	return rel, nil
}
