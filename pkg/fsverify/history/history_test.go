package history

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/fsverify/pkg/fsverify/image"
)

func testOutcomes() []*image.Outcome {
	return []*image.Outcome{
		{
			Descriptor: image.Descriptor{Name: "btrfs_standard"},
			Checks:     []image.Check{{Name: "structure", Pass: true}, {Name: "uid", Pass: true}},
			Duration:   2 * time.Second,
		},
		{
			Descriptor: image.Descriptor{Name: "btrfs_zlib"},
			Checks:     []image.Check{{Name: "structure", Pass: true}, {Name: "size", Pass: false}},
		},
		{
			Descriptor: image.Descriptor{Name: "btrfs_lzo"},
			Err:        errors.New("btrfs_lzo: capture file missing"),
		},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	h, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if h == nil {
		t.Fatal("New() returned nil")
	}

	if _, err := New(""); err == nil {
		t.Fatal("New() error = nil, want error for empty directory")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	entry := Summarize(testOutcomes(), time.Minute)

	want := Summary{Images: 3, Passed: 1, Failed: 1, Aborted: 1, Duration: time.Minute}
	if entry.Summary != want {
		t.Errorf("Summary = %+v, want %+v", entry.Summary, want)
	}
	if !entry.Images[0].Pass || entry.Images[0].Duration != 2*time.Second {
		t.Errorf("Images[0] = %+v, want passing with duration", entry.Images[0])
	}
	if got := entry.Images[1].Failed; len(got) != 1 || got[0] != "size" {
		t.Errorf("Images[1].Failed = %v, want [size]", got)
	}
	if entry.Images[2].Error == "" || entry.Images[2].Pass {
		t.Errorf("Images[2] = %+v, want aborted", entry.Images[2])
	}
}

func TestHistory_LogAndGet(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "history")

	h, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entry, err := h.Log(testOutcomes(), time.Minute)
	if err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	if len(entry.ID) != 36 {
		t.Errorf("ID = %q, want a UUID", entry.ID)
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}

	got, err := h.Get(entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != entry.ID || got.Summary != entry.Summary {
		t.Errorf("Get() = %+v, want %+v", got, entry)
	}
	if len(got.Images) != 3 || got.Images[1].Name != "btrfs_zlib" {
		t.Errorf("Get().Images = %+v", got.Images)
	}

	byPrefix, err := h.Get(entry.ID[:8])
	if err != nil {
		t.Fatalf("Get(prefix) error = %v", err)
	}
	if byPrefix.ID != entry.ID {
		t.Errorf("Get(prefix).ID = %s, want %s", byPrefix.ID, entry.ID)
	}

	tmp, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(tmp) != 0 {
		t.Errorf("temp files left behind: %v", tmp)
	}
}

func TestHistory_GetErrors(t *testing.T) {
	t.Parallel()

	h, _ := New(t.TempDir())
	if _, err := h.Get(""); err == nil {
		t.Error("Get(\"\") error = nil, want error")
	}
	if _, err := h.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestHistory_List(t *testing.T) {
	t.Parallel()

	h, _ := New(t.TempDir())

	entries, err := h.List(0)
	if err != nil {
		t.Fatalf("List() on missing dir error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("List() = %v, want empty non-nil slice", entries)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		e, err := h.Log(testOutcomes()[:1], time.Second)
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		ids = append(ids, e.ID)
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.WriteFile(filepath.Join(h.Dir(), "junk.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err = h.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}
	if entries[0].ID != ids[2] || entries[2].ID != ids[0] {
		t.Errorf("List() not newest first: %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}

	limited, err := h.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d entries, want 2", len(limited))
	}
}

func TestHistory_Cleanup(t *testing.T) {
	t.Parallel()

	h, _ := New(t.TempDir())
	old, err := h.Log(testOutcomes(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := h.Log(testOutcomes(), time.Second)
	if err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(h.Dir(), entryFilename(old))
	past := time.Now().AddDate(0, 0, -45)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := h.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if _, err := h.Get(old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old entry still present: %v", err)
	}
	if _, err := h.Get(fresh.ID); err != nil {
		t.Errorf("fresh entry removed: %v", err)
	}

	missing, _ := New(filepath.Join(t.TempDir(), "absent"))
	if n, err := missing.Cleanup(30); err != nil || n != 0 {
		t.Errorf("Cleanup() on missing dir = %d, %v", n, err)
	}
}

func TestHistory_ConcurrentLog(t *testing.T) {
	t.Parallel()

	h, _ := New(t.TempDir())
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Log(testOutcomes(), time.Second); err != nil {
				t.Errorf("Log() error = %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := h.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 10 {
		t.Errorf("List() returned %d entries, want 10", len(entries))
	}
}
