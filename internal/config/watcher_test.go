package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// writeOverlay writes content and bumps the mtime so the poller's quick
// mtime check cannot miss a same-second rewrite.
func writeOverlay(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Duration(len(content)) * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWatcherInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herald.yaml")
	writeOverlay(t, path, "vocabulary: [Jarvis]\n")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if got := w.Current(); len(got.Vocabulary) != 1 || got.Vocabulary[0] != "Jarvis" {
		t.Errorf("Current().Vocabulary = %v, want [Jarvis]", got.Vocabulary)
	}
}

func TestWatcherInitialLoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("NewWatcher() = nil error for missing file")
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herald.yaml")
	writeOverlay(t, path, "vocabulary: [Jarvis]\n")

	var mu sync.Mutex
	var gotOld, gotNew *Extras
	onChange := func(old, new *Extras) {
		mu.Lock()
		gotOld, gotNew = old, new
		mu.Unlock()
	}

	w, err := NewWatcher(path, onChange, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	writeOverlay(t, path, "vocabulary: [Jarvis, Novakeep]\n")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotNew != nil
	})

	mu.Lock()
	defer mu.Unlock()
	if len(gotOld.Vocabulary) != 1 || len(gotNew.Vocabulary) != 2 {
		t.Errorf("onChange old/new vocabulary = %v / %v", gotOld.Vocabulary, gotNew.Vocabulary)
	}
	if got := w.Current(); len(got.Vocabulary) != 2 {
		t.Errorf("Current() not updated: %v", got.Vocabulary)
	}
}

func TestWatcherKeepsOldOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herald.yaml")
	writeOverlay(t, path, "vocabulary: [Jarvis]\n")

	var calls sync.Map
	w, err := NewWatcher(path, func(old, new *Extras) {
		calls.Store("called", true)
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	writeOverlay(t, path, "vocbulary: [oops]\n") // unknown field

	// Give the poller a few cycles to observe the bad file.
	time.Sleep(100 * time.Millisecond)

	if _, ok := calls.Load("called"); ok {
		t.Error("onChange fired for an invalid overlay")
	}
	if got := w.Current(); len(got.Vocabulary) != 1 {
		t.Errorf("Current() = %v, want the last valid overlay", got.Vocabulary)
	}
}

func TestWatcherIgnoresTouchWithoutContentChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herald.yaml")
	writeOverlay(t, path, "vocabulary: [Jarvis]\n")

	var called sync.Map
	w, err := NewWatcher(path, func(old, new *Extras) {
		called.Store("called", true)
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	// Same content, new mtime.
	writeOverlay(t, path, "vocabulary: [Jarvis]\n")

	time.Sleep(100 * time.Millisecond)

	if _, ok := called.Load("called"); ok {
		t.Error("onChange fired when content was unchanged")
	}
}
