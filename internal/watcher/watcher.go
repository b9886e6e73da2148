// Package watcher reports diffraction files that appear or change in a
// directory.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"diffkit/internal/loader"
)

// Watcher watches a directory for loadable files
type Watcher struct {
	dir      string
	onChange func(path string)
	debounce time.Duration
	accept   func(path string) bool
	log      log.FieldLogger
}

// New creates a watcher that calls onChange with the absolute path of every
// .hspy or .blo file created or written in dir, once writes have settled.
func New(dir string, onChange func(path string)) *Watcher {
	return &Watcher{
		dir:      dir,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		accept:   Loadable,
		log:      log.WithField("component", "watcher"),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// WithLogger sets the logger
func (w *Watcher) WithLogger(l log.FieldLogger) *Watcher {
	w.log = l
	return w
}

// Loadable reports whether path names a file the catalog ingests without
// extra parameters. MIB scans need a scan size and are skipped.
func Loadable(path string) bool {
	switch loader.FormatFromPath(path) {
	case loader.FormatHSPY, loader.FormatBLO:
		return true
	}
	return false
}

// Watch blocks until ctx is cancelled or the watcher fails to start.
func (w *Watcher) Watch(ctx context.Context) error {
	dir, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.WithField("dir", dir).Info("watching for diffraction files")

	settle := newDebouncer(w.debounce)
	defer settle.stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !w.accept(event.Name) {
				continue
			}

			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}

			settle.schedule(path, func() {
				if ctx.Err() != nil {
					return
				}
				w.log.WithField("path", path).Debug("file settled")
				w.onChange(path)
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
