package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/fsverify/pkg/fsverify/image"
	"github.com/jamesainslie/fsverify/pkg/fsverify/logging"
)

// ErrNotFound is returned when no entry has the requested ID.
var ErrNotFound = errors.New("history entry not found")

var logger = logging.Get("history")

// History stores run entries as JSON files in a directory.
type History struct {
	dir string
	mu  sync.Mutex
}

// New creates a History in dir. The directory is created on first write.
func New(dir string) (*History, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &History{dir: dir}, nil
}

// Dir returns the history directory.
func (h *History) Dir() string {
	return h.dir
}

// Summarize converts outcomes into an unsaved entry.
func Summarize(outcomes []*image.Outcome, duration time.Duration) *Entry {
	entry := &Entry{
		Images:  make([]ImageSummary, 0, len(outcomes)),
		Summary: Summary{Images: len(outcomes), Duration: duration},
	}
	for _, o := range outcomes {
		s := ImageSummary{
			Name:     o.Descriptor.Name,
			Pass:     o.Passed(),
			Duration: o.Duration,
		}
		for _, c := range o.Failures() {
			s.Failed = append(s.Failed, c.Name)
		}
		switch {
		case o.Err != nil:
			s.Error = o.Err.Error()
			entry.Summary.Aborted++
		case s.Pass:
			entry.Summary.Passed++
		default:
			entry.Summary.Failed++
		}
		entry.Images = append(entry.Images, s)
	}
	return entry
}

// Log persists the outcomes of a run and returns the created entry.
func (h *History) Log(outcomes []*image.Outcome, duration time.Duration) (*Entry, error) {
	entry := Summarize(outcomes, duration)
	entry.ID = uuid.New().String()
	entry.Timestamp = time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := h.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write history entry: %w", err)
	}
	logger.Debug("run recorded", "id", entry.ID, "images", entry.Summary.Images)
	return entry, nil
}

// writeEntry writes an entry atomically through a temp file and rename.
func (h *History) writeEntry(entry *Entry) error {
	path := filepath.Join(h.dir, entryFilename(entry))

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// entryFilename prefixes the ID with the timestamp so that a directory
// listing is in run order.
func entryFilename(entry *Entry) string {
	return fmt.Sprintf("%s_%s.json", entry.Timestamp.Format("20060102T150405"), entry.ID)
}

// List returns entries newest first. A limit of 0 or less returns all.
// Files that cannot be parsed are skipped.
func (h *History) List(limit int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	names, err := h.entryFiles()
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, name := range names {
		entry, err := h.readEntryFile(name)
		if err != nil {
			logger.Warn("skipping unreadable history entry", "file", name, "error", err)
			continue
		}
		entries = append(entries, *entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given ID. A unique ID prefix is accepted.
func (h *History) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	names, err := h.entryFiles()
	if err != nil {
		return nil, err
	}

	var candidates []string
	for _, name := range names {
		_, fileID, ok := strings.Cut(strings.TrimSuffix(name, ".json"), "_")
		if !ok || !strings.HasPrefix(fileID, id) {
			continue
		}
		if fileID == id {
			return h.readEntryFile(name)
		}
		candidates = append(candidates, name)
	}
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return h.readEntryFile(candidates[0])
	default:
		return nil, fmt.Errorf("ambiguous entry ID: %s", id)
	}
}

// Cleanup removes entries older than retentionDays and returns how many
// were removed.
func (h *History) Cleanup(retentionDays int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	names, err := h.entryFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		path := filepath.Join(h.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("removing history entry failed", "file", name, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// entryFiles returns the JSON file names in the directory.
func (h *History) entryFiles() ([]string, error) {
	files, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		names = append(names, f.Name())
	}
	return names, nil
}

func (h *History) readEntryFile(name string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}
