package metadata

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"vinoteka/pkg/debounce"
	"vinoteka/pkg/logger"
)

// Watcher reloads file definitions into a Registry when the schema
// directory changes. A reload that fails validation keeps the previous
// definitions.
type Watcher struct {
	dir       string
	registry  *Registry
	log       *logger.Logger
	debouncer *debounce.Debouncer
	fs        *fsnotify.Watcher

	// OnReload, when set, is called after every reload attempt.
	OnReload func(defs []EntityDef, err error)
}

// NewWatcher starts watching dir. Call Run to process events.
func NewWatcher(dir string, registry *Registry, log *logger.Logger, quiet time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		dir:       dir,
		registry:  registry,
		log:       log.WithComponent("schema-watcher"),
		debouncer: debounce.NewDebouncer(quiet),
		fs:        fsw,
	}, nil
}

// Reload loads the directory and swaps the file definitions.
func (w *Watcher) Reload() ([]EntityDef, error) {
	defs, err := LoadDir(w.dir)
	if err == nil {
		err = w.registry.ReplaceSource(SourceFile, defs)
	}
	if err != nil {
		w.log.Warnw("schema reload failed, keeping previous definitions", "dir", w.dir, "error", err)
	} else {
		w.log.Infow("schema reloaded", "dir", w.dir, "entities", len(defs))
	}
	if w.OnReload != nil {
		w.OnReload(defs, err)
	}
	return defs, err
}

// Run blocks until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.debouncer.Cancel()
		w.fs.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !isSchemaFile(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue // chmod
			}
			w.log.Debugw("schema file changed", "file", ev.Name, "op", ev.Op.String())
			w.debouncer.Trigger(func() { _, _ = w.Reload() })

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Errorw("schema watcher error", "error", err)
		}
	}
}
