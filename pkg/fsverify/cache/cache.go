// Package cache keeps content digests of recovered files between runs so
// that unchanged files are not hashed again.
package cache

import (
	"errors"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Cache provides digest lookups keyed by tree root and relative path.
type Cache struct {
	store *Store
}

// DefaultPath returns $XDG_CACHE_HOME/fsverify/digests.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "fsverify", "digests")
}

// Open opens or creates a cache at the given path.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Lookup returns the cached digest of root/relPath if the file still has the
// given size and modification time.
func (c *Cache) Lookup(root, relPath string, size, mtime int64) (string, bool, error) {
	entry, err := c.store.Get(root, relPath)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !entry.Matches(size, mtime) {
		return "", false, nil
	}
	return entry.Digest, true, nil
}

// Store records the digest of root/relPath.
func (c *Cache) Store(root, relPath string, entry *DigestEntry) error {
	return c.store.Put(root, relPath, entry)
}

// PutBatch records many digests under root at once.
func (c *Cache) PutBatch(root string, entries map[string]*DigestEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return c.store.PutBatch(root, entries)
}

// Clear removes all entries under root.
func (c *Cache) Clear(root string) error {
	return c.store.DeletePrefix(root)
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() error {
	return c.store.DeleteAll()
}

// Count returns the number of entries under root.
func (c *Cache) Count(root string) (int, error) {
	return c.store.Count(root)
}
