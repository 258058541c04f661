package store

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/weilyn/cadence/internal/logging"
)

// Watcher observes the store database file for writes made by other
// processes. The loop polls Stale between iterations to decide whether an
// off-schedule sync is worth running; a watcher that cannot be established
// is not an error, the loop just falls back to its periodic sync cadence.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	stale   atomic.Bool
	done    chan struct{}
	logger  *logging.Logger
}

// NewWatcher starts watching the database file at path. The parent
// directory is watched rather than the file itself so that atomic
// rename-over-write updates are still observed.
func NewWatcher(path string, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		path:    filepath.Clean(path),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go w.run()
	return w, nil
}

// run consumes filesystem events until Close. It only flips the stale flag;
// acting on staleness is the loop's job.
func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.logger.Debug("store database changed externally", "op", event.Op.String())
				w.stale.Store(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("store watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Stale reports whether the database has changed since the last Reset.
func (w *Watcher) Stale() bool {
	return w.stale.Load()
}

// Reset clears the stale flag, typically right after a sync.
func (w *Watcher) Reset() {
	w.stale.Store(false)
}

// Close stops watching. Safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
