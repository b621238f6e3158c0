package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// defaultPollInterval is how often the watcher re-checks the overlay file.
const defaultPollInterval = 5 * time.Second

// snapshot is one successfully parsed overlay plus the file state it was
// read from.
type snapshot struct {
	extras *Extras
	hash   [sha256.Size]byte
	mtime  time.Time
}

// Watcher polls the YAML overlay file and reports edits through a callback.
// Polling is deliberate: fsnotify would add a dependency for a file that
// changes at human editing speed, and the mtime fast path keeps idle polls
// cheap. An invalid overlay is logged and ignored; the previous one stays
// live.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Extras)

	mu       sync.Mutex
	last     snapshot
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher reads the overlay at path and starts polling it in the
// background. The initial read must succeed.
func NewWatcher(path string, onChange func(old, new *Extras), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.last = snap

	go w.run()
	return w, nil
}

// Current returns the most recently accepted overlay.
func (w *Watcher) Current() *Extras {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.extras
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep is one poll cycle: skip when the mtime is unchanged, otherwise
// re-read, and fire onChange only when the content hash actually moved.
func (w *Watcher) sweep() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.last.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	snap, err := w.read()
	if err != nil {
		slog.Warn("config watcher: failed to load overlay", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if snap.hash == w.last.hash {
		// Touched but identical; remember the mtime so the fast path works.
		w.last.mtime = snap.mtime
		w.mu.Unlock()
		return
	}
	old := w.last.extras
	w.last = snap
	w.mu.Unlock()

	slog.Info("config watcher: overlay reloaded", "path", w.path)

	// Callback runs unlocked so it may call Current.
	if w.onChange != nil {
		w.onChange(old, snap.extras)
	}
}

// read loads and parses the overlay file into a snapshot.
func (w *Watcher) read() (snapshot, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return snapshot{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return snapshot{}, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return snapshot{}, err
	}

	extras, err := LoadExtrasFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}

	return snapshot{
		extras: extras,
		hash:   sha256.Sum256(data),
		mtime:  info.ModTime(),
	}, nil
}
