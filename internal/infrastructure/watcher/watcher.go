// Package watcher reports local store mutations made by other processes.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher observes the SQLite file of the local store (including its -wal and
// -journal companions) and calls back once per burst of writes.
type Watcher struct {
	fs       *fsnotify.Watcher
	dir      string
	base     string
	debounce time.Duration
	logger   logrus.FieldLogger

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a watcher for the database file at path.
// It must be started with Start before it reports anything.
func New(path string, debounce time.Duration, logger logrus.FieldLogger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		fs:       fs,
		dir:      filepath.Dir(abs),
		base:     filepath.Base(abs),
		debounce: debounce,
		logger:   logger.WithField("component", "watcher"),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. onChange runs on the watcher goroutine after each
// quiet period following a change. Events seen while skip reports true are
// dropped; skip may be nil.
func (w *Watcher) Start(onChange func(), skip func() bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.fs.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop(onChange, skip)
	return nil
}

// Stop ends watching and blocks until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.fs.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(onChange func(), skip func() bool) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if skip != nil && skip() {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			onChange()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("file watch error")
		}
	}
}

// relevant keeps writes to the database file and its companions. Chmod and
// events for unrelated files in the same directory are ignored.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !strings.HasPrefix(filepath.Base(event.Name), w.base) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
