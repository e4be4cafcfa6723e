// Package content checks recovered file contents against a reference
// digest manifest.
package content

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// ErrManifest indicates a malformed manifest line.
var ErrManifest = errors.New("malformed manifest")

// SentinelPrefix starts the line that ends the per-file section of a
// manifest. Whole-image digests follow it.
const SentinelPrefix = "-"

// ReadManifest reads "<hash> <path>" lines until the sentinel line.
//
// The separator is a single space, or md5sum's two spaces or " *". Paths
// may contain spaces but a path starting with a space or '*' cannot be told
// apart from the md5sum forms. Blank lines are skipped.
func ReadManifest(r io.Reader) ([]record.ManifestEntry, error) {
	var entries []record.ManifestEntry
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.HasPrefix(line, SentinelPrefix) {
			break
		}
		if line == "" {
			continue
		}

		entry, err := parseManifestLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, dup := seen[entry.Path]; dup {
			return nil, fmt.Errorf("line %d: %w: %s", lineNo, record.ErrDuplicatePath, entry.Path)
		}
		seen[entry.Path] = struct{}{}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	return entries, nil
}

func parseManifestLine(line string) (record.ManifestEntry, error) {
	hash, path, ok := strings.Cut(line, " ")
	if !ok || hash == "" {
		return record.ManifestEntry{}, fmt.Errorf("%w: %q", ErrManifest, line)
	}
	if strings.HasPrefix(path, " ") || strings.HasPrefix(path, "*") {
		path = path[1:]
	}
	if path == "" {
		return record.ManifestEntry{}, fmt.Errorf("%w: missing path: %q", ErrManifest, line)
	}
	return record.ManifestEntry{Path: path, Hash: strings.ToLower(hash)}, nil
}

// ReadManifestFile reads the manifest stored at path.
func ReadManifestFile(path string) ([]record.ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	return ReadManifest(f)
}

// WriteManifest writes entries in md5sum format, sorted by path, followed
// by the sentinel line.
func WriteManifest(w io.Writer, entries []record.ManifestEntry) error {
	sorted := make([]record.ManifestEntry, len(entries))
	copy(sorted, entries)
	record.SortManifest(sorted)

	bw := bufio.NewWriter(w)
	for _, e := range sorted {
		if _, err := fmt.Fprintln(bw, e.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(bw, strings.Repeat(SentinelPrefix, 32)); err != nil {
		return err
	}
	return bw.Flush()
}
