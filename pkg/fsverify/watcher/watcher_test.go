package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWatch(t *testing.T) {
	w := newWatcher(t)

	root := t.TempDir()
	sub := filepath.Join(root, "istat")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := w.Watch(root); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Watch(root); err != nil {
		t.Fatalf("second Watch() error = %v", err)
	}

	w.mu.RLock()
	rootTracked, subTracked := w.paths[root], w.paths[sub]
	w.mu.RUnlock()
	if !rootTracked || !subTracked {
		t.Errorf("Watch() tracked root=%v sub=%v, want both", rootTracked, subTracked)
	}
	if got := w.Roots(); len(got) != 1 || got[0] != root {
		t.Errorf("Roots() = %v, want [%s]", got, root)
	}
}

func TestWatch_Errors(t *testing.T) {
	w := newWatcher(t)

	if err := w.Watch(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Watch() on missing path error = nil, want error")
	}

	file := filepath.Join(t.TempDir(), "fls.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(file); err == nil {
		t.Error("Watch() on file error = nil, want error")
	}
}

func TestHandleEvent(t *testing.T) {
	w := newWatcher(t)
	a, b := t.TempDir(), t.TempDir()
	nested := filepath.Join(a, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, root := range []string{a, b, nested} {
		if err := w.Watch(root); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  string
	}{
		{"write in a", fsnotify.Event{Name: filepath.Join(a, "stat.txt"), Op: fsnotify.Write}, a},
		{"write in b", fsnotify.Event{Name: filepath.Join(b, "ils.txt"), Op: fsnotify.Write}, b},
		{"innermost root wins", fsnotify.Event{Name: filepath.Join(nested, "fls.txt"), Op: fsnotify.Create}, nested},
		{"chmod ignored", fsnotify.Event{Name: filepath.Join(a, "stat.txt"), Op: fsnotify.Chmod}, ""},
		{"temp file ignored", fsnotify.Event{Name: filepath.Join(a, "x.json.tmp"), Op: fsnotify.Write}, ""},
		{"outside roots", fsnotify.Event{Name: "/elsewhere/file", Op: fsnotify.Write}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.handleEvent(tt.event); got != tt.want {
				t.Errorf("handleEvent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleEvent_TracksDirectories(t *testing.T) {
	w := newWatcher(t)
	root := t.TempDir()
	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	created := filepath.Join(root, "recovered")
	deep := filepath.Join(created, "b")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	w.handleEvent(fsnotify.Event{Name: created, Op: fsnotify.Create})

	w.mu.RLock()
	tracked := w.paths[created] && w.paths[deep]
	w.mu.RUnlock()
	if !tracked {
		t.Fatal("created directory tree not watched")
	}

	w.handleEvent(fsnotify.Event{Name: created, Op: fsnotify.Remove})
	w.mu.RLock()
	_, stillCreated := w.paths[created]
	_, stillDeep := w.paths[deep]
	w.mu.RUnlock()
	if stillCreated || stillDeep {
		t.Error("removed directory tree still watched")
	}
}

func TestIsSubPath(t *testing.T) {
	tests := []struct {
		path, parent string
		want         bool
	}{
		{"/a/b", "/a", true},
		{"/a/b/c", "/a", true},
		{"/a", "/a", false},
		{"/ab", "/a", false},
		{"/b", "/a", false},
	}
	for _, tt := range tests {
		if got := isSubPath(tt.path, tt.parent); got != tt.want {
			t.Errorf("isSubPath(%q, %q) = %v, want %v", tt.path, tt.parent, got, tt.want)
		}
	}
}

func TestRun_Debounces(t *testing.T) {
	w := newWatcher(t)
	root := t.TempDir()
	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		calls []string
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, 200*time.Millisecond, func(r string) {
			mu.Lock()
			calls = append(calls, r)
			mu.Unlock()
		})
	}()

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "stat.txt")
		if err := os.WriteFile(name, []byte{byte('0' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	// Give a second callback a chance to show up if debouncing is broken.
	time.Sleep(400 * time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("callback ran %d times, want 1", len(calls))
	}
	if calls[0] != root {
		t.Errorf("callback root = %q, want %q", calls[0], root)
	}
}

func TestClose(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
