package cache

import (
	"bytes"
	"encoding/gob"
)

// Version is incremented when the entry encoding changes.
const Version = 1

// KeySeparator separates root from relative path in cache keys.
const KeySeparator = '\x00'

// DigestEntry is the cached digest of one file, valid while the file keeps
// its size and modification time.
type DigestEntry struct {
	Size   int64  // File size in bytes
	Mtime  int64  // Modification time as UnixNano
	Digest string // Hex-encoded content digest
}

// Encode serializes the entry to bytes using gob.
func (e *DigestEntry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *DigestEntry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// Matches reports whether the entry is still valid for a file of the given
// size and modification time.
func (e *DigestEntry) Matches(size, mtime int64) bool {
	return e.Size == size && e.Mtime == mtime && e.Digest != ""
}

// MakeKey creates a cache key from root and relative path.
// Format: <root>\x00<relative_path>
func MakeKey(root, relPath string) []byte {
	return []byte(root + string(KeySeparator) + relPath)
}

// ParseKey extracts root and relative path from a cache key.
func ParseKey(key []byte) (root, relPath string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix for all keys under a root.
func MakeKeyPrefix(root string) []byte {
	return []byte(root + string(KeySeparator))
}
