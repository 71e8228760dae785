package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ChangeFunc receives the previous and the newly loaded configuration
// together with their [Diff].
type ChangeFunc func(old, new *Config, d ConfigDiff)

// snapshot identifies one version of the config file on disk.
type snapshot struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher reloads a config file when it changes on disk. It polls the
// modification time and re-parses only when that moves; a content hash
// filters out touches that change nothing. Files that fail to parse or
// validate are logged and ignored, so [Watcher.Current] always holds the last
// good configuration.
type Watcher struct {
	path     string
	format   Format
	interval time.Duration
	onChange ChangeFunc

	// checkMu serialises checks so a forced [Watcher.Check] and the poll loop
	// never reload concurrently.
	checkMu sync.Mutex
	last    snapshot

	mu      sync.RWMutex
	current *Config

	stop     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
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

// NewWatcher loads the file at path and starts polling it in the background.
// onChange may be nil. It is called from the polling goroutine, outside any
// lock, so it may call [Watcher.Current].
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     path,
		format:   format,
		interval: 5 * time.Second,
		onChange: onChange,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.last = snap

	go w.loop()
	return w, nil
}

// Current returns the last valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop ends polling and waits for the loop to exit. It is safe to call more
// than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.stopped
}

func (w *Watcher) loop() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				slog.Warn("config watcher: reload failed, keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

// Check looks at the file once, outside the polling schedule. It reports
// whether a new configuration was installed. A file that fails to load
// returns the error and leaves the current configuration in place.
func (w *Watcher) Check() (bool, error) {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	if info.ModTime().Equal(w.last.mtime) {
		return false, nil
	}

	cfg, snap, err := w.read()
	if err != nil {
		return false, err
	}
	unchanged := bytes.Equal(snap.sum[:], w.last.sum[:])
	w.last = snap
	if unchanged {
		return false, nil
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	d := Diff(old, cfg)
	slog.Info("config watcher: configuration reloaded", "path", w.path,
		"log_level_changed", d.LogLevelChanged, "encode_changed", d.EncodeChanged, "restart_required", d.RestartRequired)
	if w.onChange != nil {
		w.onChange(old, cfg, d)
	}
	return true, nil
}

// read loads, validates and fingerprints the file.
func (w *Watcher) read() (*Config, snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, snapshot{}, err
	}
	cfg, err := decodeBytes(data, w.format)
	if err != nil {
		return nil, snapshot{}, err
	}
	return cfg, snapshot{mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
