package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/coreseekdev/textcase/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// reconcileDelay debounces full reconciliation passes.
const reconcileDelay = 200 * time.Millisecond

// Watch keeps the index current with the documents under root until ctx is
// cancelled, calling cb (if non-nil) after each index change.
//
// fsnotify reports a rename only on the old path and a new directory without
// its contents, so both schedule a reconciliation pass that diffs the whole
// project the way Sync does.
func Watch(ctx context.Context, db LinkIndex, store storage.Provider, catalog Catalog, root string, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := watchTree(fsw, root); err != nil {
		return err
	}
	w := &watcher{fsw: fsw, db: db, store: store, catalog: catalog, root: root, logger: logger, cb: cb}
	logger.Info("watcher: started", slog.String("root", root))

	reconcile := time.NewTimer(reconcileDelay)
	reconcile.Stop()
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-reconcile.C:
			if err := syncIndex(db, store, catalog, logger, cb); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				reconcile.Reset(reconcileDelay)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

type watcher struct {
	fsw     *fsnotify.Watcher
	db      LinkIndex
	store   storage.Provider
	catalog Catalog
	root    string
	logger  *slog.Logger
	cb      EventCallback
}

// handle applies one event and reports whether a reconciliation is needed.
func (w *watcher) handle(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") {
				return false
			}
			if err := watchTree(w.fsw, ev.Name); err != nil {
				w.logger.Warn("watcher: add dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			return true
		}
	}

	rel, ok := w.document(ev.Name)
	if !ok {
		return false
	}

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		data, err := w.store.Read(rel)
		if err != nil {
			w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return false
		}
		if err := IndexFile(w.db, w.catalog, rel, data); err != nil {
			w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			return false
		}
		if ev.Has(fsnotify.Create) {
			w.notify("created", rel)
		} else {
			w.notify("updated", rel)
		}

	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if err := w.db.DeleteDocument(rel); err != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		} else {
			w.notify("deleted", rel)
		}
		return ev.Has(fsnotify.Rename)
	}
	return false
}

// document maps an absolute event path to a root-relative document path.
func (w *watcher) document(abs string) (string, bool) {
	if !strings.HasSuffix(abs, ".md") {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if _, _, ok := w.catalog.Identify(rel); !ok {
		return "", false
	}
	return rel, true
}

func (w *watcher) notify(kind, rel string) {
	w.logger.Debug("watcher: "+kind, slog.String("path", rel))
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// watchTree adds dir and its non-hidden subdirectories to the watcher.
func watchTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}
