package content

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/fsverify/pkg/fsverify/cache"
	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

var logger = logging.Get("content")

type hashOptions struct {
	cache   *cache.Cache
	workers int
}

// Option configures HashTree.
type Option func(*hashOptions)

// WithCache reuses digests of files whose size and modification time are
// unchanged since they were last hashed.
func WithCache(c *cache.Cache) Option {
	return func(o *hashOptions) {
		o.cache = c
	}
}

// WithWorkers sets the number of walker goroutines. 0 uses fastwalk's default.
func WithWorkers(n int) Option {
	return func(o *hashOptions) {
		if n < 0 {
			n = 0
		}
		o.workers = n
	}
}

// HashFile returns the hex MD5 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashTree digests every regular file below root. Names starting with '$'
// and paths the policy excludes are skipped. Entries are sorted by path.
func HashTree(ctx context.Context, root string, policy normalize.Policy, opts ...Option) ([]record.ManifestEntry, error) {
	o := &hashOptions{}
	for _, opt := range opts {
		opt(o)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("hashing tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("hashing tree: %s is not a directory", root)
	}

	var (
		mu      sync.Mutex
		entries []record.ManifestEntry
		fresh   = make(map[string]*cache.DigestEntry)
	)

	conf := fastwalk.Config{Follow: false, NumWorkers: o.workers}
	walkErr := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), "$") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if policy.Excluded(rel) {
			return nil
		}

		digest, entry, err := digestFile(o.cache, root, rel, path, d)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", rel, err)
		}

		mu.Lock()
		entries = append(entries, record.ManifestEntry{Path: rel, Hash: digest})
		if entry != nil {
			fresh[rel] = entry
		}
		mu.Unlock()
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	if o.cache != nil {
		if err := o.cache.PutBatch(root, fresh); err != nil {
			logger.Warn("updating digest cache failed", "root", root, "error", err)
		}
		logger.Debug("tree hashed", "root", root, "files", len(entries), "cached", len(entries)-len(fresh))
	}

	record.SortManifest(entries)
	return entries, nil
}

// digestFile returns the digest of path and, when it had to be computed
// with a cache configured, the entry to store.
func digestFile(c *cache.Cache, root, rel, path string, d fs.DirEntry) (string, *cache.DigestEntry, error) {
	if c == nil {
		digest, err := HashFile(path)
		return digest, nil, err
	}

	info, err := d.Info()
	if err != nil {
		return "", nil, err
	}
	size, mtime := info.Size(), info.ModTime().UnixNano()

	if digest, ok, err := c.Lookup(root, rel, size, mtime); err == nil && ok {
		return digest, nil, nil
	}

	digest, err := HashFile(path)
	if err != nil {
		return "", nil, err
	}
	return digest, &cache.DigestEntry{Size: size, Mtime: mtime, Digest: digest}, nil
}
