package catalog

import (
	"context"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher serves a catalog file and reloads it when the file changes.
//
// Readers always see a complete catalog: a reload builds the new catalog
// first and swaps it in atomically. A reload that fails to parse or validate
// is logged and the previous catalog stays in place.
type Watcher struct {
	path     string
	logger   *log.Logger
	current  atomic.Pointer[Catalog]
	onReload func(*Catalog)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger used for reload events.
func WithLogger(l *log.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithReloadHook registers fn to run after every successful reload.
func WithReloadHook(fn func(*Catalog)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher loads path and returns a watcher holding it. The file is not
// watched until [Watcher.Run] is called.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:   filepath.Clean(path),
		logger: log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.current.Store(c)
	return w, nil
}

// Catalog returns the current catalog.
func (w *Watcher) Catalog() *Catalog {
	return w.current.Load()
}

// Reload re-reads the file and swaps the catalog on success.
func (w *Watcher) Reload() error {
	c, err := Load(w.path)
	if err != nil {
		return err
	}
	w.current.Store(c)
	if w.onReload != nil {
		w.onReload(c)
	}
	return nil
}

// Run watches the catalog file until ctx is done. The parent directory is
// watched rather than the file itself so that editors which replace the
// file by rename keep triggering reloads.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Debug("watching catalog", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.Warn("catalog reload failed, keeping previous catalog", "path", w.path, "err", err)
				continue
			}
			w.logger.Info("catalog reloaded", "path", w.path, "configurations", w.Catalog().Len())
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", "err", err)
		}
	}
}

// relevant reports whether ev may have changed the catalog contents.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
